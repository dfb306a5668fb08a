package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fitsync/sync-server/internal/domain"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubExerciseService struct {
	listFn func(ctx context.Context, search string, limit int64) ([]domain.Exercise, error)
}

func (s *stubExerciseService) ListExercises(ctx context.Context, search string, limit int64) ([]domain.Exercise, error) {
	return s.listFn(ctx, search, limit)
}

func exerciseTestRouter(svc *stubExerciseService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/exercises", NewExerciseHandler(svc).ListExercises)
	return router
}

func TestListExercisesHandler(t *testing.T) {
	var gotSearch string
	var gotLimit int64
	svc := &stubExerciseService{
		listFn: func(ctx context.Context, search string, limit int64) ([]domain.Exercise, error) {
			gotSearch = search
			gotLimit = limit
			return []domain.Exercise{
				{ID: primitive.NewObjectID(), Name: "Bench Press", PrimaryMuscles: []string{"chest"}},
				{ID: primitive.NewObjectID(), Name: "Bulgarian Split Squat", IsCustom: true},
			}, nil
		},
	}
	router := exerciseTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exercises?search=b&limit=25", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if gotSearch != "b" || gotLimit != 25 {
		t.Errorf("service saw search=%q limit=%d", gotSearch, gotLimit)
	}

	var responses []ExerciseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &responses); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("got %d entries, want 2", len(responses))
	}
	if responses[0].Name != "Bench Press" || responses[0].IsCustom {
		t.Errorf("first entry = %+v", responses[0])
	}
	if !responses[1].IsCustom {
		t.Error("custom entry must keep its origin flag")
	}
}

func TestListExercisesHandlerRejectsBadLimit(t *testing.T) {
	svc := &stubExerciseService{
		listFn: func(ctx context.Context, search string, limit int64) ([]domain.Exercise, error) {
			t.Fatal("service must not be called for an invalid limit")
			return nil, nil
		},
	}
	router := exerciseTestRouter(svc)

	for _, raw := range []string{"abc", "-1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exercises?limit="+raw, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: status = %d, want 400", raw, w.Code)
		}
	}
}
