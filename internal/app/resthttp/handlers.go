package resthttp

import (
	_ "embed"
	"net/http"
	"strconv"

	"github.com/sir_venger/minibackup/internal/usecase/blobsvc"
	"github.com/sir_venger/minibackup/pkg/blobproto"
	"github.com/sir_venger/minibackup/pkg/httperrors"
)

//go:embed static/README.html
var readme []byte

// createdResp: тело ответа на успешный POST.
type createdResp struct {
	Key      string `json:"key"`
	AdminKey string `json:"admin_key"`
	Status   int    `json:"status"`
}

// getBlob отдаёт блоб как есть; без ключа отдаёт описание сервиса.
func (s *Server) getBlob(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get(blobproto.ParamKey)
	if key == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(readme)
		return
	}

	data, err := s.Blobs.Get(r.Context(), key)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	w.Header().Set("Content-Type", octetStream)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// postBlob сохраняет новый блоб; разрешён только по HTTPS.
func (s *Server) postBlob(w http.ResponseWriter, r *http.Request) {
	vals, err := params(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	res, err := s.Blobs.Create(r.Context(), blobsvc.CreateRequest{
		Data:   []byte(vals.Get(blobproto.ParamData)),
		Addr:   clientAddr(r),
		Secure: s.secure(r),
	})
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusCreated, createdResp{
		Key:      res.Key,
		AdminKey: res.AdminKey,
		Status:   http.StatusCreated,
	})
}

// putBlob перезаписывает блоб.
func (s *Server) putBlob(w http.ResponseWriter, r *http.Request) {
	vals, err := params(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	err = s.Blobs.Update(r.Context(), blobsvc.UpdateRequest{
		Key:    vals.Get(blobproto.ParamKey),
		Data:   []byte(vals.Get(blobproto.ParamData)),
		Secure: s.secure(r),
		Auth:   authFrom(vals.Get),
	})
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, httperrors.Body{Message: blobproto.MsgUpdated, Status: http.StatusOK})
}

// deleteBlob удаляет блоб.
func (s *Server) deleteBlob(w http.ResponseWriter, r *http.Request) {
	vals, err := params(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	err = s.Blobs.Delete(r.Context(), blobsvc.DeleteRequest{
		Key:    vals.Get(blobproto.ParamKey),
		Secure: s.secure(r),
		Auth:   authFrom(vals.Get),
	})
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, httperrors.Body{Message: blobproto.MsgDeleted, Status: http.StatusOK})
}

func authFrom(get func(string) string) blobsvc.Auth {
	return blobsvc.Auth{
		Token:    get(blobproto.ParamToken),
		AdminKey: get(blobproto.ParamAdminKey),
	}
}
