package openlaw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		OC:         "tester",
		BaseURL:    srv.URL,
		Retries:    retries,
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresOC(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{OC: "  "}); !errors.Is(err, ErrMissingOC) {
		t.Fatalf("err=%v, want ErrMissingOC", err)
	}
}

func TestSearch_SendsParamsAndWrapsSingleItem(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/lawSearch.do" {
			t.Errorf("path=%s", r.URL.Path)
		}
		for k, want := range map[string]string{
			"OC": "tester", "target": "prec", "type": "JSON", "query": "중대재해",
			"display": "100", "page": "2", "search": "2", "sort": "ddes",
		} {
			if got := q.Get(k); got != want {
				t.Errorf("%s=%q, want %q", k, got, want)
			}
		}
		fmt.Fprint(w, `{"PrecSearch":{"totalCnt":"1","prec":{"판례일련번호":228541,"사건명":"산업안전보건법위반"}}}`)
	}, 0)

	items, err := c.Search(context.Background(), SearchRequest{
		Query: "중대재해", Page: 2, Display: 100, BodySearch: true, Sort: "ddes",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items)=%d, want 1", len(items))
	}
	if got := fmt.Sprint(items[0]["판례일련번호"]); got != "228541" {
		t.Fatalf("id=%s, want 228541 (numbers must not become floats)", got)
	}
}

func TestSearch_ListAndEmpty(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"PrecSearch":{"목록":[{"ID":"1"},{"ID":"2"},"junk"]}}`)
			return
		}
		fmt.Fprint(w, `{"PrecSearch":{"totalCnt":"2"}}`)
	}, 0)

	items, err := c.Search(context.Background(), SearchRequest{Query: "q", Page: 1})
	if err != nil || len(items) != 2 {
		t.Fatalf("page 1: items=%v err=%v", items, err)
	}
	items, err = c.Search(context.Background(), SearchRequest{Query: "q", Page: 2})
	if err != nil || len(items) != 0 {
		t.Fatalf("page 2: items=%v err=%v", items, err)
	}
}

func TestSearch_FallsBackToXML(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "JSON" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>잠시 후 다시 시도</html>")
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<PrecSearch><totalCnt>2</totalCnt>
<prec id="1"><판례일련번호>11</판례일련번호><사건명><![CDATA[업무상과실치사]]></사건명></prec>
<prec id="2"><판례일련번호>12</판례일련번호></prec>
</PrecSearch>`)
	}, 0)

	items, err := c.Search(context.Background(), SearchRequest{Query: "q", Page: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 || items[0]["판례일련번호"] != "11" || items[0]["사건명"] != "업무상과실치사" {
		t.Fatalf("items=%v", items)
	}
}

func TestDetail_UnwrapsServiceEnvelope(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lawService.do" || r.URL.Query().Get("ID") != "228541" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `{"PrecService":{"사건번호":"2021도123","주문":"기각<br/>한다"}}`)
	}, 0)

	item, err := c.Detail(context.Background(), TargetPrecedent, "228541")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if item["사건번호"] != "2021도123" {
		t.Fatalf("item=%v", item)
	}
}

func TestDetail_ListRootTakesFirst(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Prec":[{"사건번호":"first"},{"사건번호":"second"}]}`)
	}, 0)

	item, err := c.Detail(context.Background(), "", "1")
	if err != nil || item["사건번호"] != "first" {
		t.Fatalf("item=%v err=%v", item, err)
	}
}

func TestDetail_UndecodableIsErrDecode(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not a document")
	}, 0)

	_, err := c.Detail(context.Background(), TargetPrecedent, "1")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err=%v, want ErrDecode", err)
	}
}

func TestStatusError_HintAndRedaction(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}, 3)

	_, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusForbidden || se.Temporary() {
		t.Fatalf("status=%d temporary=%v", se.StatusCode, se.Temporary())
	}
	if strings.Contains(se.URL, "tester") {
		t.Fatalf("OC key leaked into error url %s", se.URL)
	}
	if !strings.Contains(err.Error(), "approved") {
		t.Fatalf("missing approval hint: %v", err)
	}
}

func TestStatusError_BodyCutOnRuneBoundary(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, strings.Repeat("가", maxErrorBody))
	}, 0)

	_, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *StatusError", err)
	}
	if !utf8.ValidString(se.Body) || len(se.Body) > maxErrorBody || len(se.Body) < maxErrorBody-2 {
		t.Fatalf("body len=%d valid=%v", len(se.Body), utf8.ValidString(se.Body))
	}
	if got := bodySnippet([]byte("짧음")); got != "짧음" {
		t.Fatalf("short body=%q", got)
	}
}

func TestRetry_RecoversFromTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"PrecSearch":{"prec":[{"ID":"9"}]}}`)
	}, 3)

	items, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	if err != nil || len(items) != 1 {
		t.Fatalf("items=%v err=%v", items, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want 3", calls.Load())
	}
}

func TestMetrics_CountAttemptsAndRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"PrecSearch":{"prec":[{"ID":"9"}]}}`)
	}))
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c, err := New(Config{OC: "tester", BaseURL: srv.URL, Retries: 3, MinBackoff: time.Millisecond, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Search(context.Background(), SearchRequest{Target: TargetPrecedent, Query: "q"}); err != nil {
		t.Fatal(err)
	}

	for code, want := range map[string]float64{"502": 2, "200": 1} {
		if got := testutil.ToFloat64(m.requests.WithLabelValues("lawSearch.do", TargetPrecedent, "JSON", code)); got != want {
			t.Errorf("requests{code=%s}=%v, want %v", code, got, want)
		}
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("lawSearch.do", TargetPrecedent)); got != 2 {
		t.Errorf("retries=%v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.latency); n != 1 {
		t.Errorf("latency series=%d, want 1", n)
	}
	var nilMetrics *Metrics
	nilMetrics.observe("x", "y", "JSON", 200, time.Second)
	nilMetrics.retry("x", "y")
}

func TestSearchLaws_AndPickBestMatch(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("target") != "law" {
			t.Errorf("target=%s", r.URL.Query().Get("target"))
		}
		fmt.Fprint(w, `{"LawSearch":{"law":[
			{"법령ID":"013993","법령명한글":"중대재해 처벌 등에 관한 법률 시행령"},
			{"법령ID":"013844","법령명한글":"「중대재해 처벌 등에 관한 법률」"}
		]}}`)
	}, 0)

	laws, err := c.SearchLaws(context.Background(), "중대재해 처벌 등에 관한 법률", 100, 1)
	if err != nil || len(laws) != 2 {
		t.Fatalf("laws=%v err=%v", laws, err)
	}

	best, ok := PickBestMatch(laws, "중대재해처벌 등에 관한 법률")
	if !ok || best.ID != "013844" {
		t.Fatalf("exact match: best=%+v", best)
	}
	best, _ = PickBestMatch(laws, "시행령")
	if best.ID != "013993" {
		t.Fatalf("substring match: best=%+v", best)
	}
	best, _ = PickBestMatch(laws, "없는 법")
	if best.ID != "013993" {
		t.Fatalf("fallback to first: best=%+v", best)
	}
	if _, ok := PickBestMatch(nil, "x"); ok {
		t.Fatal("empty list must report false")
	}
}

func TestLawBody_ReturnsRawJSON(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"법령":{"기본정보":{"법령명_한글":"중대재해 처벌 등에 관한 법률"}}}`)
	}, 0)

	body, err := c.LawBody(context.Background(), "013844")
	if err != nil {
		t.Fatalf("LawBody: %v", err)
	}
	if !strings.Contains(string(body), "기본정보") {
		t.Fatalf("body=%s", body)
	}
}

func TestNewLimiter_ZeroDelayIsUnlimited(t *testing.T) {
	t.Parallel()

	lim := NewLimiter(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 100; i++ {
		if err := lim.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}
