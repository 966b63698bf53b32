package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/m-zajac/orgstats/internal/app"
)

const (
	defaultHandlerPerPageValue = 20
	maxHandlerPerPageValue     = 100
	defaultHandlerPageValue    = 1
)

// Organization is one prepared organization view.
type Organization interface {
	TopContributors(ctx context.Context, count int, page int) ([]app.Contributor, int, error)
	ContributorCount() int
	LastChanged() time.Time
	ChangedSince(dt time.Time) bool
	StartPreloader()
}

// Service provides organization views.
type Service interface {
	Organization(ctx context.Context, name string, forceRefresh bool) (Organization, error)
}

// NewAppService adapts an app service to the Service interface.
func NewAppService(svc *app.Service) Service {
	return appService{svc: svc}
}

type appService struct {
	svc *app.Service
}

func (a appService) Organization(ctx context.Context, name string, forceRefresh bool) (Organization, error) {
	org, err := a.svc.Organization(ctx, name, forceRefresh)
	if err != nil {
		return nil, err
	}

	return org, nil
}

type navigation struct {
	Page              int `json:"page"`
	PerPage           int `json:"per_page"`
	TotalContributors int `json:"total_contributors"`
	TotalPages        int `json:"total_pages"`
}

type topContributor struct {
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	Image         string `json:"image"`
	Contributions int    `json:"contributions"`
	Commit        string `json:"commit"`
}

type organizationResponse struct {
	Navigation navigation       `json:"navigation"`
	Data       []topContributor `json:"data"`
}

func newOrganizationResponse(page, perPage, total, pages int, top []app.Contributor) organizationResponse {
	data := make([]topContributor, 0, len(top))
	for _, c := range top {
		tc := topContributor{
			Username:      c.Username,
			Email:         c.Email,
			Image:         c.AvatarURL,
			Contributions: c.Contributions,
		}
		if c.LastCommit != nil {
			tc.Commit = c.LastCommit.Message
		}
		data = append(data, tc)
	}

	return organizationResponse{
		Navigation: navigation{
			Page:              page,
			PerPage:           perPage,
			TotalContributors: total,
			TotalPages:        pages,
		},
		Data: data,
	}
}

// NewOrganizationHandler creates handlerfunc returning one page of an
// organization's ranked contributors.
func NewOrganizationHandler(
	getOrgName func(*http.Request) string,
	service Service,
	respCache *ResponseCache,
	l logrus.FieldLogger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgName := getOrgName(r)
		if orgName == "" {
			http.NotFound(w, r)
			return
		}

		mode := parseCacheMode(r)
		perPage := getIntParam(r, "per_page", defaultHandlerPerPageValue)
		if perPage > maxHandlerPerPageValue {
			perPage = maxHandlerPerPageValue
		}
		page := getIntParam(r, "page", defaultHandlerPageValue)

		if mode == cacheModeOK {
			if payload, lastChanged, ok := respCache.Get(orgName, perPage, page); ok {
				writeJSONPayload(w, http.StatusOK, payload, lastChanged)
				return
			}
		}

		org, err := service.Organization(r.Context(), orgName, mode == cacheModeNoCache)
		if err != nil {
			writeError(w, err, l)
			return
		}

		if mode == cacheModeIfUnchanged {
			if since, ok := parseIfModifiedSince(r); ok && !org.ChangedSince(since) {
				w.Header().Set("Last-Modified", formatLastModified(org.LastChanged()))
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		top, pages, err := org.TopContributors(r.Context(), perPage, page)
		if err != nil {
			writeError(w, err, l)
			return
		}

		response := newOrganizationResponse(page, perPage, org.ContributorCount(), pages, top)
		payload, err := jsoniter.ConfigFastest.Marshal(response)
		if err != nil {
			l.Errorf("marshalling response: %v", err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		respCache.Set(orgName, perPage, page, payload, org.LastChanged())
		org.StartPreloader()

		writeJSONPayload(w, http.StatusOK, payload, org.LastChanged())
	}
}

func writeJSONPayload(w http.ResponseWriter, status int, payload []byte, lastChanged time.Time) {
	w.Header().Set("Content-type", "application/json; charset=utf-8")
	if !lastChanged.IsZero() {
		w.Header().Set("Last-Modified", formatLastModified(lastChanged))
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeError maps an app error to a status code and a json body. Unknown
// errors are logged and answered with a bare 500.
func writeError(w http.ResponseWriter, err error, l logrus.FieldLogger) {
	status := app.ErrorStatusCode(err)
	payload := app.ErrorPayload(err)
	if status >= http.StatusInternalServerError {
		l.Errorf("handler error: %v", err)
		payload = map[string]interface{}{"message": "internal server error"}
	}

	w.Header().Set("Content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = jsoniter.ConfigFastest.NewEncoder(w).Encode(payload)
}

func getIntParam(r *http.Request, name string, defaultValue int) int {
	value := defaultValue
	if vs := r.URL.Query().Get(name); vs != "" {
		if v, err := strconv.Atoi(vs); err == nil && v > 0 {
			value = v
		}
	}

	return value
}
