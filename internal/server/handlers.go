package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docsearch/internal/domain"
)

const notInitializedError = "System not initialized. Please upload documents first."

type statusResponse struct {
	Initialized   bool                `json:"initialized"`
	Message       string              `json:"message"`
	DocumentCount map[domain.Kind]int `json:"document_count"`
	UnitCount     map[domain.Kind]int `json:"unit_count"`
	Generation    string              `json:"generation"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.processor.Load()
	resp := statusResponse{
		Initialized:   p.HasDocuments(),
		Message:       "System ready",
		DocumentCount: p.DocumentCounts(),
		UnitCount:     p.UnitCounts(),
		Generation:    p.ID(),
	}
	if !resp.Initialized {
		resp.Message = "System not initialized. Upload documents to get started."
	}
	writeJSON(w, http.StatusOK, resp)
}

type documentInfo struct {
	Name string      `json:"name"`
	Type domain.Kind `json:"type"`
	Size int64       `json:"size"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.opts.UploadDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docs := make([]documentInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, err := domain.KindFromPath(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, documentInfo{Name: e.Name(), Type: kind, Size: info.Size()})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	name := secureFilename(raw)
	path := filepath.Join(s.opts.UploadDir, name)
	if info, err := os.Stat(path); name == "" || err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err := os.Remove(path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Removal cannot be expressed as an append: rebuild from the directory.
	counts, err := s.Initialize(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info().Str("file", name).Msg("Document deleted")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("File %q deleted successfully", name),
		"document_count": counts,
	})
}

type uploadResponse struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	Uploaded      []string            `json:"uploaded"`
	Errors        []string            `json:"errors,omitempty"`
	DocumentCount map[domain.Kind]int `json:"document_count"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds the %d MB limit", s.opts.MaxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	var (
		accepted []*multipart.FileHeader
		names    []string
		errs     []string
	)
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		name := secureFilename(fh.Filename)
		if _, err := domain.KindFromPath(name); name == "" || err != nil {
			errs = append(errs, fmt.Sprintf("%s: Invalid file type", fh.Filename))
			continue
		}
		if _, err := os.Stat(filepath.Join(s.opts.UploadDir, name)); err == nil {
			errs = append(errs, fmt.Sprintf("%s: already uploaded", fh.Filename))
			continue
		}
		accepted = append(accepted, fh)
		names = append(names, name)
	}
	if len(accepted) == 0 && len(errs) == 0 {
		writeError(w, http.StatusBadRequest, "No files selected")
		return
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	p := s.processor.Load()
	if limit := s.opts.MaxDocuments; limit > 0 && p.TotalCount()+len(accepted) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"Document limit reached: %d loaded, %d uploaded, maximum is %d",
			p.TotalCount(), len(accepted), limit))
		return
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var uploaded []string
	for i, fh := range accepted {
		path := filepath.Join(s.opts.UploadDir, names[i])
		if err := saveUpload(fh, path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}
		ok, err := s.ingestLocked(r.Context(), path)
		if !ok {
			// Keep the upload directory aligned with the corpus.
			_ = os.Remove(path)
			msg := "could not be processed"
			if err != nil {
				msg = err.Error()
			}
			errs = append(errs, fmt.Sprintf("%s: %s", fh.Filename, msg))
			continue
		}
		uploaded = append(uploaded, names[i])
	}

	if len(uploaded) == 0 {
		writeError(w, http.StatusBadRequest, "No files were uploaded. "+strings.Join(errs, "; "))
		return
	}

	message := fmt.Sprintf("Successfully uploaded %d file(s)", len(uploaded))
	if len(errs) > 0 {
		message += fmt.Sprintf(". %d file(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	s.logger.Info().Strs("files", uploaded).Int("failed", len(errs)).Msg("Upload processed")
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:       true,
		Message:       message,
		Uploaded:      uploaded,
		Errors:        errs,
		DocumentCount: p.DocumentCounts(),
	})
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

type queryRequest struct {
	Question *string `json:"question"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many queries. Please slow down.")
		return
	}

	p := s.processor.Load()
	if !p.HasDocuments() {
		if _, err := s.Initialize(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Lazy initialization failed")
		}
		p = s.processor.Load()
	}
	if !p.HasDocuments() {
		writeError(w, http.StatusBadRequest, notInitializedError)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == nil {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}
	question := strings.TrimSpace(*req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "Question cannot be empty")
		return
	}

	res := p.Query(r.Context(), question)
	s.logger.Info().
		Bool("success", res.Success).
		Str("kind", string(res.Kind)).
		Str("question", question).
		Msg("Query answered")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Initialize(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if total := s.processor.Load().TotalCount(); total == 0 {
		writeError(w, http.StatusInternalServerError, "Failed to initialize system")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "System initialized successfully",
		"document_count": counts,
	})
}
