package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tutor-client/internal/app"
	"tutor-client/internal/domain"
	infraredis "tutor-client/internal/infra/redis"
	transport "tutor-client/internal/transport/http"
	"tutor-client/internal/transport/ws"
)

func TestLessonSubmitRetakeEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	server := httptest.NewServer(tutorServer(t))
	defer server.Close()

	events := infraredis.NewEventStore(redisClient, 5*time.Minute)
	dialer := ws.NewDialer("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", 5*time.Second)
	client := transport.NewClient(server.URL+"/api", 5*time.Second)
	engine := app.NewEngine(dialer, client, events, slog.New(slog.NewTextHandler(io.Discard, nil)))

	updates, cancel := engine.Subscribe()
	defer cancel()
	if err := engine.Connect(ctx, "session-it", "Python basics"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer engine.Close()

	snap := awaitSnapshot(t, updates, app.AssessmentReady)
	if len(snap.Steps) != domain.StepsPerSession {
		t.Fatalf("expected %d steps, got %d", domain.StepsPerSession, len(snap.Steps))
	}
	if snap.Assessment.ID != "a-1" {
		t.Fatalf("expected assessment a-1, got %s", snap.Assessment.ID)
	}

	if err := engine.SetAnswer("q1", "4"); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	report, err := engine.Submit(ctx, engine.Answers())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !report.Passed || report.AssessmentID != "a-1" {
		t.Fatalf("unexpected report %+v", report)
	}

	outcome, err := engine.Retake(ctx, true)
	if err != nil {
		t.Fatalf("retake: %v", err)
	}
	fresh, ok := outcome.(domain.NewContent)
	if !ok || fresh.Assessment.ID != "a-2" {
		t.Fatalf("expected new content a-2, got %#v", outcome)
	}
	if got := engine.Snapshot(); got.GradeReport != nil || got.RetakeID != "a-2" {
		t.Fatalf("retake should clear the grade and move identity, got %+v", got)
	}

	logged, err := engine.Events(ctx)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	types := map[string]int{}
	for _, ev := range logged {
		types[ev.Type]++
	}
	for _, want := range []string{domain.EventTopicSent, "tutor.step", "assessment.ready", domain.EventInfo} {
		if types[want] == 0 {
			t.Fatalf("expected %q in stored log, got %v", want, types)
		}
	}
	if types["tutor.step"] != domain.StepsPerSession {
		t.Fatalf("expected %d stored steps, got %d", domain.StepsPerSession, types["tutor.step"])
	}

	engine.Close()
	stored, err := events.List(ctx, "session-it")
	if err != nil {
		t.Fatalf("list stored events: %v", err)
	}
	if len(stored) < len(logged) {
		t.Fatalf("expected every queued entry in redis after close, got %d of %d", len(stored), len(logged))
	}
}

// tutorServer streams a full lesson and answers the assessment endpoints.
func tutorServer(t *testing.T) http.Handler {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()

	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "session.start", "data": map[string]any{}})
		var hello struct {
			Topic string `json:"topic"`
		}
		if err := conn.ReadJSON(&hello); err != nil || hello.Topic == "" {
			_ = conn.WriteJSON(map[string]any{"type": "error", "data": map[string]any{"message": "No topic provided"}})
			return
		}
		for i := 1; i <= domain.StepsPerSession; i++ {
			_ = conn.WriteJSON(map[string]any{"type": "tutor.step", "data": map[string]any{
				"step_number": i,
				"title":       fmt.Sprintf("Step %d", i),
				"content":     hello.Topic,
			}})
		}
		_ = conn.WriteJSON(map[string]any{"type": "tutor.complete", "data": map[string]any{"message": "Teaching complete"}})
		_ = conn.WriteJSON(map[string]any{"type": "assessment.ready", "data": map[string]any{"assessment": sampleAssessment("a-1")}})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "lesson done"))
	})

	mux.HandleFunc("POST /api/assessments/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssessmentID string          `json:"assessment_id"`
			Answers      []domain.Answer `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		correct := len(req.Answers) == 1 && req.Answers[0].Answer == "4"
		score := 0.0
		if correct {
			score = 1
		}
		writeJSON(w, map[string]any{"grade_report": domain.GradeReport{
			AssessmentID: r.PathValue("id"),
			TotalScore:   score,
			MaxScore:     1,
			Percentage:   score,
			Passed:       correct,
			Feedback:     "graded",
			QuestionGrades: []domain.QuestionGrade{
				{QuestionID: "q1", IsCorrect: correct, Score: score, MaxScore: 1},
			},
		}})
	})

	mux.HandleFunc("POST /api/assessments/retake", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssessmentID string `json:"assessment_id"`
			GenerateNew  bool   `json:"generate_new"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := req.AssessmentID
		if req.GenerateNew {
			id = "a-2"
		}
		writeJSON(w, map[string]any{
			"assessment":        sampleAssessment(id),
			"remediation_steps": []int{2, 4},
			"message":           "ok",
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sampleAssessment(id string) domain.Assessment {
	return domain.Assessment{
		ID:            id,
		Topic:         "Python basics",
		TotalPoints:   1,
		PassThreshold: 0.7,
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionMCQ, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Points: 1},
		},
	}
}

func awaitSnapshot(t *testing.T, updates <-chan app.Snapshot, cond func(app.Snapshot) bool) app.Snapshot {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case snap := <-updates:
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("condition not reached before deadline")
		}
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
