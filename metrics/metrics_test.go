package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"futures-sim-go/infrastructure/monitor"
)

func TestStartMetricsServer(t *testing.T) {
	mon := monitor.New(monitor.Config{Namespace: "probe", Subsystem: "game"})
	mon.TickAdvanced()

	s, err := StartMetricsServer("127.0.0.1:0", mon.Handler(), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "probe_game_ticks_total 1") {
		t.Errorf("Expected ticks counter in output, got:\n%s", body)
	}

	resp2, err := http.Get("http://" + s.Addr() + "/other")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp2.StatusCode)
	}
}

func TestStartMetricsServerBadAddr(t *testing.T) {
	if _, err := StartMetricsServer("256.0.0.1:bad", http.NotFoundHandler(), nil); err == nil {
		t.Fatalf("expected listen error")
	}
}
