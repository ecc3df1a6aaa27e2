package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/jonathan/addrlens/internal/adapters"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

// importSource fills records posted without a source.
const importSource = "api"

// handleListTags returns every resolved tag ordered by address.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.store.AllResolved(r.Context())
	if err != nil {
		s.fail(w, r, &tags.StoreError{Op: "list tags", Cause: err})
		return
	}

	entries := make([]TagEntry, 0, len(resolved))
	for addr, tag := range resolved {
		entries = append(entries, TagEntry{Address: addr, Name: tag.Name, Entity: tag.Entity})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"tags":  entries,
		"count": len(entries),
	})
}

// handleGetTag returns the resolved tag and every source record for one address.
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	addr, err := types.ParseAddress(r.PathValue("address"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	records, err := s.store.Records(r.Context(), addr)
	if err != nil {
		s.fail(w, r, &tags.StoreError{Op: "get records", Cause: err})
		return
	}
	resolved, ok := s.resolver.Resolve(addr, records)
	if !ok {
		s.fail(w, r, &ErrNotFound{What: "tag for " + string(addr)})
		return
	}

	s.jsonResponse(w, http.StatusOK, TagDetail{
		Address:  addr,
		Checksum: addr.Checksum(),
		Resolved: resolved,
		Records:  records,
	})
}

// handleImportTags validates a JSON array of tag records against the import
// schema, normalizes it and imports the surviving rows.
func (s *Server) handleImportTags(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if !json.Valid(body) {
		s.fail(w, r, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	raw, err := adapters.DecodeRecords(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, rejected := tags.Normalize(raw, importSource)

	resp := ImportResponse{}
	for _, rej := range rejected {
		resp.Rejected = append(resp.Rejected, RejectedEntry{Index: rej.Index, Reason: rej.Reason})
	}
	if len(records) > 0 {
		n, err := s.store.Import(r.Context(), records)
		if err != nil {
			s.fail(w, r, &tags.StoreError{Op: "import", Cause: err})
			return
		}
		resp.Imported = n
	}

	s.log.Info().Int("imported", resp.Imported).Int("rejected", len(resp.Rejected)).Msg("tags imported")
	s.jsonResponse(w, http.StatusOK, resp)
}
