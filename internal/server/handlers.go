package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/engine"
	"github.com/jonathan/addrlens/internal/types"
)

// AnnotateRequest is the JSON form of POST /annotate. Either HTML or URL is required.
type AnnotateRequest struct {
	HTML       string `json:"html,omitempty"`
	URL        string `json:"url,omitempty"`
	UseBrowser bool   `json:"use_browser,omitempty"`
}

// AnnotatedMatch is one address element inserted into the page.
type AnnotatedMatch struct {
	Address        types.Address      `json:"address"`
	DisplayText    string             `json:"display_text"`
	Truncated      bool               `json:"truncated"`
	FromAttributes bool               `json:"from_attributes,omitempty"`
	Tag            *types.ResolvedTag `json:"tag,omitempty"`
}

// AnnotateResponse is the response for POST /annotate.
type AnnotateResponse struct {
	HTML     string           `json:"html"`
	Matches  []AnnotatedMatch `json:"matches"`
	Stats    engine.Stats     `json:"stats"`
	Degraded bool             `json:"degraded,omitempty"` // tag store was unavailable
}

// handleAnnotate annotates a page given as an HTML body, or as JSON naming the
// HTML or a URL to fetch.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeAnnotateRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := req.HTML
	if page == "" {
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			s.fail(w, r, &ErrValidation{Field: "url", Message: "must be an absolute http(s) URL"})
			return
		}
		page, err = s.fetchPage(r.Context(), req.URL, req.UseBrowser)
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}

	resp, err := s.annotate(r.Context(), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func decodeAnnotateRequest(r *http.Request) (AnnotateRequest, error) {
	var req AnnotateRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return req, err
			}
			return req, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		req.HTML = string(body)
	}

	if strings.TrimSpace(req.HTML) == "" && req.URL == "" {
		return req, &ErrValidation{Field: "html", Message: "either an HTML body or url is required"}
	}
	return req, nil
}

// annotate runs one engine over page and collects what it inserted.
func (s *Server) annotate(ctx context.Context, page string) (*AnnotateResponse, error) {
	doc, err := dom.ParseString(page)
	if err != nil {
		return nil, err
	}

	report := engine.AnnotateOnce(ctx, doc, s.store, engine.OptionsFromConfig(s.cfg, s.log))

	resp := &AnnotateResponse{
		Matches:  make([]AnnotatedMatch, 0, len(report.Annotations)),
		Stats:    report.Stats,
		Degraded: report.Degraded,
	}
	for _, a := range report.Annotations {
		resp.Matches = append(resp.Matches, AnnotatedMatch{
			Address:        a.Match.Address,
			DisplayText:    a.Match.DisplayText,
			Truncated:      a.Match.Truncated,
			FromAttributes: a.FromAttributes,
			Tag:            a.Tag,
		})
	}

	resp.HTML, err = doc.HTML()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// TagEntry is one resolved tag in GET /tags.
type TagEntry struct {
	Address types.Address `json:"address"`
	Name    string        `json:"name"`
	Entity  string        `json:"entity,omitempty"`
}

// TagDetail is the response for GET /tags/{address}.
type TagDetail struct {
	Address  types.Address     `json:"address"`
	Checksum string            `json:"checksum"`
	Resolved types.ResolvedTag `json:"resolved"`
	Records  []types.TagRecord `json:"records"`
}

// ImportResponse is the response for POST /tags/import.
type ImportResponse struct {
	Imported int             `json:"imported"`
	Rejected []RejectedEntry `json:"rejected,omitempty"`
}

// RejectedEntry reports one input row dropped during an import.
type RejectedEntry struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
