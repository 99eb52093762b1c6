package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/history"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/labstack/echo/v4"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	defaultSimilarLimit = 5
	maxSimilarLimit     = 20
)

func (s *Server) handleQuery(c echo.Context) error {
	var req rag.QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	resp, err := s.rag.Query(ctx, req)
	if err != nil {
		return s.fail(c, "query", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// queryLimit parses an integer query parameter within [1, max].
func queryLimit(c echo.Context, name string, def, max int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer between 1 and "+strconv.Itoa(max))
	}
	return n, nil
}

func (s *Server) handleHistory(c echo.Context) error {
	limit, err := queryLimit(c, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		return err
	}
	entries := s.rag.RecentHistory(limit)
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{History: entries, Total: len(entries)})
}

func (s *Server) handleClearHistory(c echo.Context) error {
	s.rag.ClearHistory(c.Request().Context())
	return c.JSON(http.StatusOK, MessageResponse{Message: "Query history cleared successfully"})
}

func (s *Server) handleSimilar(c echo.Context) error {
	query := c.QueryParam("query")
	if strings.TrimSpace(query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}
	limit, err := queryLimit(c, "limit", defaultSimilarLimit, maxSimilarLimit)
	if err != nil {
		return err
	}
	matches := s.rag.SimilarQueries(query, limit)
	if matches == nil {
		matches = []history.Match{}
	}
	return c.JSON(http.StatusOK, SimilarResponse{Query: query, SimilarQueries: matches, Total: len(matches)})
}

func (s *Server) handleQueryStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.rag.Stats())
}

func (s *Server) handleSummary(c echo.Context) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	summary, err := s.rag.Summarize(ctx, c.Param("id"))
	if err != nil {
		return s.fail(c, "summary", err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleEmbed(c echo.Context) error {
	var req EmbeddingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Text cannot be empty.")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	result, err := s.rag.EmbedText(ctx, req.Text)
	if err != nil {
		return s.fail(c, "embed", err)
	}
	return c.JSON(http.StatusOK, result)
}
