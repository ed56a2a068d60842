package openlaw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"safeon/internal/normalize"
)

// Law is one statute hit from a target=law search.
type Law struct {
	ID               string `json:"lawId"`
	Name             string `json:"lawName"`
	EnforceDate      string `json:"enforceDate,omitempty"`
	PromulgationDate string `json:"promulgationDate,omitempty"`
	Type             string `json:"type,omitempty"`
}

var lawAliases = normalize.AliasTable{
	{Field: "id", Keys: []string{"법령ID", "lawId", "ID"}},
	{Field: "name", Keys: []string{"법령명한글", "법령명", "lawName", "name", "법령약칭명"}},
	{Field: "enforce_date", Keys: []string{"시행일자", "enforcementDate"}},
	{Field: "promulgation_date", Keys: []string{"공포일자", "promulgationDate"}},
	{Field: "type", Keys: []string{"법령구분명", "법령종류명", "typeName"}},
}

// SearchLaws runs a statute search and normalizes the hits.
func (c *Client) SearchLaws(ctx context.Context, query string, display, page int) ([]Law, error) {
	items, err := c.Search(ctx, SearchRequest{Target: TargetLaw, Query: query, Display: display, Page: page})
	if err != nil {
		return nil, err
	}
	laws := make([]Law, 0, len(items))
	for _, it := range items {
		f := normalize.Resolve(it, lawAliases)
		laws = append(laws, Law{
			ID:               f.Value("id"),
			Name:             f.Value("name"),
			EnforceDate:      f.Value("enforce_date"),
			PromulgationDate: f.Value("promulgation_date"),
			Type:             f.Value("type"),
		})
	}
	return laws, nil
}

// PickBestMatch returns the hit whose name equals target ignoring
// whitespace, 「」 brackets and case, then the first whose name contains it,
// then the first hit. It reports false only for an empty list.
func PickBestMatch(laws []Law, target string) (Law, bool) {
	if len(laws) == 0 {
		return Law{}, false
	}
	want := lawNameKey(target)
	for _, l := range laws {
		if lawNameKey(l.Name) == want {
			return l, true
		}
	}
	for _, l := range laws {
		if strings.Contains(lawNameKey(l.Name), want) {
			return l, true
		}
	}
	return laws[0], true
}

func lawNameKey(s string) string {
	s = strings.Join(strings.Fields(s), "")
	s = strings.NewReplacer("「", "", "」", "").Replace(s)
	return strings.ToLower(s)
}

// LawBody fetches the full statute body as raw JSON, unchanged.
func (c *Client) LawBody(ctx context.Context, id string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("target", TargetLaw)
	params.Set("ID", id)
	body, err := c.get(ctx, "lawService.do", TargetLaw, params, "JSON")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: law %s :: %s", ErrDecode, id, bodySnippet(body))
	}
	return json.RawMessage(body), nil
}
