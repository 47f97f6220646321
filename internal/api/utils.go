package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"toden-backend/internal/core"
	"toden-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
)

const (
	uploadField     = "fileUpload"
	maxUploadMemory = 32 << 20
)

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, core.Errorf(core.InvalidRequest, "unable to parse request query params")
	}

	if err := formDecoder.Decode(&data, r.URL.Query()); err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, core.Errorf(core.InvalidRequest, "unable to parse request query params")
	}

	return data, nil
}

// ParseFileForm decodes the form fields of a multipart or urlencoded body into
// T and returns the uploaded file, if any.
func ParseFileForm[T any](r *http.Request) (T, *core.Upload, error) {
	var data T

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			slog.Error("error parsing multipart form", "error", err)
			return data, nil, core.Errorf(core.InvalidRequest, "unable to parse request form")
		}
	} else if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, nil, core.Errorf(core.InvalidRequest, "unable to parse request form")
	}

	if err := formDecoder.Decode(&data, r.PostForm); err != nil {
		slog.Error("error decoding form", "error", err)
		return data, nil, core.Errorf(core.InvalidRequest, "unable to parse request form")
	}

	upload, err := formUpload(r)
	if err != nil {
		return data, nil, err
	}

	return data, upload, nil
}

func formUpload(r *http.Request) (*core.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, core.Errorf(core.InvalidRequest, "unable to read uploaded file: %v", err)
	}
	defer file.Close()

	// An upload without a filename is treated as absent.
	if header.Filename == "" {
		return nil, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, core.Errorf(core.IOError, "unable to read uploaded file: %v", err)
	}

	return &core.Upload{Name: header.Filename, Data: data}, nil
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			WriteJsonError(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, http.StatusOK, res)
	}
}

func WriteJsonError(w http.ResponseWriter, err error) {
	var kerr *core.Error
	if !errors.As(err, &kerr) {
		slog.Error("recieved non coded error from endpoint", "error", err)
	}

	status := core.KindOf(err, core.IOError).HTTPStatus()
	if status == http.StatusInternalServerError {
		slog.Error("internal server error received in endpoint", "error", err)
	}

	WriteJsonResponse(w, status, api.ErrorResponse{Error: err.Error()})
}

func WriteJsonResponse(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}

func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	param := chi.URLParam(r, key)

	if len(param) == 0 {
		return uuid.Nil, core.Errorf(core.MissingInput, "missing {%v} url parameter", key)
	}

	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, core.Errorf(core.InvalidRequest, "invalid uuid '%v' url parameter provided: %v", key, err)
	}

	return id, nil
}
