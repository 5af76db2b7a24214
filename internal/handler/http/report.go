package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type ReportHandler interface {
	Run(w http.ResponseWriter, r *http.Request)
	ExportCSV(w http.ResponseWriter, r *http.Request)

	// Shared links
	CreateSharedLink(w http.ResponseWriter, r *http.Request)
	ListSharedLinks(w http.ResponseWriter, r *http.Request)
	DeactivateSharedLink(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{reportService: reportService}
}

// query builds a report query from the {type} URL param and the range query params
func (h *reportHandlerImpl) query(r *http.Request) (report.Query, error) {
	t := report.Type(chi.URLParam(r, "type"))
	if !t.IsValid() {
		return report.Query{}, report.ErrUnknownReportType
	}

	rng, err := dateRange(r)
	if err != nil {
		return report.Query{}, err
	}

	workspaceID, _ := scope(r)
	return report.Query{
		WorkspaceID: workspaceID,
		Type:        t,
		Range:       rng,
		GroupBy:     r.URL.Query().Get("group_by"),
	}, nil
}

func (h *reportHandlerImpl) Run(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var data any
	if q.Type == report.TypeForecast {
		data, err = h.reportService.Forecast(r.Context(), q.WorkspaceID, getIntQueryParam(r, "days", report.ForecastDays))
	} else {
		data, err = h.reportService.Run(r.Context(), q)
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, data)
}

func (h *reportHandlerImpl) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	data, fileName, err := h.reportService.ExportCSV(r.Context(), q)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.File(w, "text/csv", fileName, data)
}

func (h *reportHandlerImpl) CreateSharedLink(w http.ResponseWriter, r *http.Request) {
	var req report.CreateSharedLinkRequest
	if !decodeJSON(w, r, &req, "CreateSharedLink") {
		return
	}

	workspaceID, userID := scope(r)
	link, err := h.reportService.CreateSharedLink(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Shared link created", link)
}

func (h *reportHandlerImpl) ListSharedLinks(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	links, err := h.reportService.ListSharedLinks(r.Context(), workspaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, links)
}

func (h *reportHandlerImpl) DeactivateSharedLink(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.reportService.DeactivateSharedLink(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Shared link deactivated", nil)
}
