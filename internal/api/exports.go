package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/akiwumi/typemyaudio/internal/dataset"
	"github.com/akiwumi/typemyaudio/internal/export"
	"github.com/akiwumi/typemyaudio/internal/languages"
	"github.com/akiwumi/typemyaudio/internal/quota"
)

const msgInvalidFormat = "Invalid format. Use: pdf, docx, txt, or srt"

type exportRequest struct {
	Format string `json:"format"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	out, err := s.Exports.Export(r.Context(), accountID(r), r.PathValue("id"), req.Format)
	var notAllowed *export.NotAllowedError
	switch {
	case err == nil:
	case errors.Is(err, export.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	case errors.As(err, &notAllowed):
		writeJSON(w, http.StatusForbidden, errorBody{Error: notAllowed.Message, UpgradeURL: notAllowed.UpgradeURL})
		return
	case errors.Is(err, export.ErrJobNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	case errors.Is(err, export.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, msgNoProfile)
		return
	default:
		s.log.WithRequest(r).WithError(err).Error("export failed")
		writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", out.Disposition())
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"targets": languages.TranslationTargets()})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Ledger.Usage(r.Context(), accountID(r))
	if errors.Is(err, quota.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("usage lookup failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleUsageReport(w http.ResponseWriter, r *http.Request) {
	account := accountID(r)
	rep, err := dataset.BuildReport(r.Context(), s.Reports, s.Ledger, account, s.Clock.Now())
	if errors.Is(err, quota.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("usage report failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var buf bytes.Buffer
	if err := dataset.WriteWorkbook(&buf, rep); err != nil {
		s.log.WithRequest(r).WithError(err).Error("usage workbook failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.Header().Set("Content-Type", dataset.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "usage-"+account+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
