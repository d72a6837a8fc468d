package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"slatrack/internal/config"
	"slatrack/internal/db"
	"slatrack/internal/domain"
	"slatrack/internal/engine"
	"slatrack/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	if _, err := e.CreateTenant(context.Background(), "acme", "Acme", "tester"); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestContractLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/contracts", map[string]any{
		"tenant_id":           "acme",
		"name":                "Hosting Agreement",
		"effective_date":      "2023-01-01",
		"expiration_date":     "2023-03-31",
		"reporting_frequency": "MONTHLY",
		"status":              "ACTIVE",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create contract status %d: %s", res.StatusCode, string(data))
	}
	var contract domain.Contract
	if err := json.Unmarshal(data, &contract); err != nil {
		t.Fatalf("unmarshal contract: %v", err)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/contracts/"+contract.ID+"/periods", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list periods status %d: %s", res.StatusCode, string(data))
	}
	var periods []domain.ReportingPeriod
	if err := json.Unmarshal(data, &periods); err != nil {
		t.Fatalf("unmarshal periods: %v", err)
	}
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(periods))
	}

	// a second explicit generation hits the conflict guard
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contracts/"+contract.ID+"/periods/generate", nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("re-generate status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "periods_exist" {
		t.Fatalf("error code %q", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/slis", map[string]any{
		"name": "Priority 1 Time to Fix",
		"unit": "hours",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create sli status %d: %s", res.StatusCode, string(data))
	}
	var sli domain.ServiceLevelIndicator
	if err := json.Unmarshal(data, &sli); err != nil {
		t.Fatalf("unmarshal sli: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contracts/"+contract.ID+"/slas", map[string]any{
		"name":            "P1 Remediation",
		"sli_id":          sli.ID,
		"threshold_type":  "MAX",
		"threshold_value": 1.0,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create sla status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/periods/"+periods[0].ID+"/measurements", map[string]any{
		"sli_id":         sli.ID,
		"reported_value": 0.5,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("record measurement status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/periods/"+periods[0].ID+"/report", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("generate report status %d: %s", res.StatusCode, string(data))
	}
	var report ReportResponse
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if len(report.Items) != 1 || !report.Items[0].IsCompliant {
		t.Fatalf("report items: %+v", report.Items)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/contracts/"+contract.ID+"/compliance", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compliance status %d: %s", res.StatusCode, string(data))
	}
	var summary engine.ContractComplianceSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.Percentage == nil || *summary.Percentage != 100 {
		t.Fatalf("summary: %+v", summary)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/periods/"+periods[0].ID+"/report/tree", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tree status %d: %s", res.StatusCode, string(data))
	}
	var tree []TreeNodeResponse
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("unmarshal tree: %v", err)
	}
	if len(tree) != 1 || tree[0].Item == nil || !tree[0].Item.IsCompliant {
		t.Fatalf("tree: %+v", tree)
	}
}

func TestContractNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/contracts/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("error code %q", envelope.Error.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var body map[string]string
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body %v", body)
	}
}
