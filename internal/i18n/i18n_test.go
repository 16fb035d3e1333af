package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang  string
		msgID string
		want  string
	}{
		{"en", "ExamNotFound", "Exam not found."},
		{"ru", "ExamNotFound", "Экзамен не найден."},
		{"ru", "MaxAttemptsReached", "Вы использовали все попытки для этого экзамена."},
		{"de", "ExamNotFound", "Exam not found."},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.msgID, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.msgID); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.msgID, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Tp(ctx, "QuestionsDrafted", 1); got != "1 question drafted." {
		t.Errorf("Tp(1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsDrafted", 5); got != "5 questions drafted." {
		t.Errorf("Tp(5) = %q", got)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "AttemptsRemaining", 2); got != "Осталось 2 попытки." {
		t.Errorf("Tp(ru, 2) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	got := Td(ctx, "ScoreOf", map[string]any{"Score": 3, "Total": 4})
	if got != "Score: 3 of 4." {
		t.Errorf("Td(ScoreOf) = %q, want 'Score: 3 of 4.'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q", got)
	}
}

func TestFallbackWithoutLocalizer(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Init("en") })
	if got := T(context.Background(), "ExamNotFound"); got != "Экзамен не найден." {
		t.Errorf("fallback = %q", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(T(r.Context(), "RouteNotFound")))
	}))

	tests := []struct {
		header string
		want   string
	}{
		{"", "Route not found."},
		{"ru-RU,ru;q=0.9,en;q=0.8", "Маршрут не найден."},
		{"fr-FR", "Route not found."},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Body.String(); got != tt.want {
			t.Errorf("Accept-Language %q: got %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestLanguages(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	langs := Languages()
	if len(langs) != 2 {
		t.Errorf("expected 2 languages, got %v", langs)
	}
}
