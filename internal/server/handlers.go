package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gyeh/billcheck/internal/billing"
	"github.com/gyeh/billcheck/internal/document"
	"github.com/gyeh/billcheck/internal/extract"
	"github.com/gyeh/billcheck/internal/hospital"
	"github.com/gyeh/billcheck/internal/report"
)

type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type extractRequest struct {
	FileID string `json:"file_id"`
}

type extractResponse struct {
	LineItems        []billing.LineItem  `json:"line_items"`
	Source           extract.Source      `json:"source"`
	DetectedHospital *hospital.Detection `json:"detected_hospital"`
	Stats            extract.Stats       `json:"stats"`
}

type hospitalDetail struct {
	hospital.Hospital
	Prices map[string]hospital.Price `json:"prices"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing multipart field \"file\"")
	}
	name := filepath.Base(fh.Filename)
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return echo.NewHTTPError(http.StatusBadRequest,
			"PDF files need a layout export; upload the .json, .json.gz, .zip or .txt output instead")
	}
	if document.Extension(name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported file type: "+name)
	}
	if fh.Size > s.maxUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	id, err := s.uploads.Save(c.Request().Context(), name, f, fh.Size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{FileID: id, Filename: name})
}

func (s *Server) extract(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil || req.FileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_id is required")
	}

	name, data, err := s.uploads.Open(c.Request().Context(), req.FileID)
	if errors.Is(err, document.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if err != nil {
		return err
	}

	doc, err := document.Parse(name, data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := s.pipeline.Analyze(doc)
	if errors.Is(err, extract.ErrNoItems) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, extractResponse{
		LineItems:        a.Extraction.Items,
		Source:           a.Extraction.Source,
		DetectedHospital: a.Detected,
		Stats:            a.Extraction.Stats,
	})
}

func (s *Server) compare(c echo.Context) error {
	req := report.Request{UseReference: true}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "line_items is required")
	}

	rep, err := s.pipeline.Comparer.Compare(c.Request().Context(), req)
	if report.IsNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (s *Server) listHospitals(c echo.Context) error {
	list := s.hospitals.Search(c.QueryParam("search"))
	if list == nil {
		list = []hospital.Hospital{}
	}
	return c.JSON(http.StatusOK, map[string]any{"hospitals": list})
}

func (s *Server) getHospital(c echo.Context) error {
	h, err := s.hospitals.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
	}
	prices := s.hospitals.Prices(h.ID)
	return c.JSON(http.StatusOK, hospitalDetail{Hospital: h, Prices: prices})
}

func (s *Server) cacheStats(c echo.Context) error {
	st, err := s.cache.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) clearCache(c echo.Context) error {
	n, err := s.cache.Clear(c.Request().Context())
	if err != nil {
		return err
	}
	s.logger.Info().Int("removed", n).Msg("cache cleared")
	return c.JSON(http.StatusOK, map[string]any{"cleared": n})
}
