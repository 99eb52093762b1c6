package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgUploadAccepted = "Document uploaded successfully. Processing started."

// handleUpload stages the multipart "file" field and queues it for
// ingestion. The staged copy is removed once the document is indexed.
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	if _, err := document.Detect(name); err != nil {
		return s.fail(c, "upload", fmt.Errorf("%w; supported: %s", err, strings.Join(document.SupportedExtensions(), ", ")))
	}
	if s.config.MaxUploadBytes > 0 && fh.Size > s.config.MaxUploadBytes {
		return s.fail(c, "upload", fmt.Errorf("%w: %d bytes exceeds %d", document.ErrFileTooLarge, fh.Size, s.config.MaxUploadBytes))
	}

	id := uuid.NewString()
	path, err := s.stage(fh, id+"_"+name)
	if err != nil {
		return s.fail(c, "upload", err)
	}

	handle, err := s.ingest.Submit(c.Request().Context(), ingest.Upload{
		DocumentID:  id,
		Path:        path,
		Filename:    name,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		RemoveAfter: true,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("failed to remove rejected upload", zap.String("path", path), zap.Error(rmErr))
		}
		return s.fail(c, "upload", err)
	}

	return c.JSON(http.StatusOK, UploadResponse{
		DocumentID: handle.DocumentID,
		Filename:   handle.Filename,
		Status:     handle.Status,
		Message:    msgUploadAccepted,
		Metadata: UploadMetadata{
			Filename:        handle.Filename,
			FileSize:        handle.FileSize,
			ContentType:     handle.ContentType,
			Format:          handle.Format,
			UploadTimestamp: handle.UploadedAt,
		},
	})
}

// stage copies the upload into UploadDir. Copies exceeding MaxUploadBytes
// are discarded.
func (s *Server) stage(fh *multipart.FileHeader, name string) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.config.UploadDir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}

	var r io.Reader = src
	if s.config.MaxUploadBytes > 0 {
		r = io.LimitReader(src, s.config.MaxUploadBytes+1)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.config.MaxUploadBytes > 0 && n > s.config.MaxUploadBytes {
		err = fmt.Errorf("%w: exceeds %d bytes", document.ErrFileTooLarge, s.config.MaxUploadBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("staging upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleStatus(c echo.Context) error {
	status, ok := s.ingest.Status(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleChunks(c echo.Context) error {
	id := c.Param("id")
	chunks, err := s.index.Chunks(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, "chunks", err)
	}
	if len(chunks) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	}
	return c.JSON(http.StatusOK, ChunksResponse{
		DocumentID:  id,
		Chunks:      chunks,
		TotalChunks: len(chunks),
	})
}

func (s *Server) handleDelete(c echo.Context) error {
	id := c.Param("id")
	removed, err := s.index.DeleteDocument(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, "delete", err)
	}
	if removed == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	}
	s.ingest.Forget(id)
	s.logger.Info("document deleted", zap.String("document.id", id), zap.Int("chunks", removed))
	return c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("Document %s deleted successfully", id)})
}

func (s *Server) handleCollectionStats(c echo.Context) error {
	stats, err := s.index.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, "collection stats", err)
	}
	return c.JSON(http.StatusOK, CollectionResponse{
		TotalDocuments:  stats.TotalDocuments,
		CollectionStats: stats,
	})
}

func (s *Server) handleListUnique(c echo.Context) error {
	docs, err := s.index.Documents(c.Request().Context())
	if err != nil {
		return s.fail(c, "list documents", err)
	}
	if docs == nil {
		docs = []vectorstore.DocumentSummary{}
	}
	return c.JSON(http.StatusOK, DocumentsResponse{Documents: docs, Total: len(docs)})
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.index.Reset(c.Request().Context()); err != nil {
		return s.fail(c, "reset", err)
	}
	s.ingest.Reset()
	s.logger.Info("index reset")
	return c.JSON(http.StatusOK, MessageResponse{Message: "All documents reset successfully"})
}
