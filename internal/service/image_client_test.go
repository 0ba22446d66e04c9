package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/models"
	"storybook-server/internal/service"
)

func imageTestConfig(baseURL, apiKey string) *config.Config {
	return &config.Config{
		ImageBaseURL:      baseURL,
		ImageAPIKey:       apiKey,
		ImageTimeout:      2 * time.Second,
		ImagePollInterval: 2 * time.Millisecond,
		ImagePollAttempts: 5,
		ImagePollDeadline: time.Second,
	}
}

func imageTestRequest() *models.StoryRequest {
	return &models.StoryRequest{
		Genre:         "fantasy",
		Protagonist:   "Mira",
		Setting:       "a forest",
		Conflict:      "a storm",
		Tone:          "whimsical",
		PageCount:     2,
		IncludeImages: true,
		ArtStyle:      "watercolor",
		ImageModel:    "dreamshaper",
	}
}

func TestGenerateImage_Success(t *testing.T) {
	var resultCalls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/async/txt2img":
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body struct {
				Request map[string]interface{} `json:"request"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "dreamshaper_8_93211.safetensors", body.Request["model_name"])
			assert.Equal(t, "DPM++ 2S a Karras", body.Request["sampler_name"])
			assert.Equal(t, float64(1024), body.Request["width"])
			assert.Equal(t, float64(768), body.Request["height"])
			assert.Equal(t, float64(20), body.Request["steps"])
			assert.Contains(t, body.Request["negative_prompt"], "blurry, low quality")

			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1"})

		case "/v3/async/task-result":
			assert.Equal(t, "task-1", r.URL.Query().Get("task_id"))

			status := "QUEUED"
			images := []map[string]string{}
			if atomic.AddInt32(&resultCalls, 1) > 1 {
				status = "TASK_STATUS_SUCCEED"
				images = append(images, map[string]string{"image_url": "https://img.example/1.png"})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"task":   map[string]string{"task_id": "task-1", "status": status},
				"images": images,
			})

		default:
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := service.NewImageClient(imageTestConfig(srv.URL, "test-key"), zap.NewNop())
	result := client.GenerateImage(context.Background(), "Mira under a tree", imageTestRequest(), models.PlaceholderPageImageURL, nil)

	assert.Equal(t, "https://img.example/1.png", result.URL)
	assert.Contains(t, result.Prompt, "Mira under a tree")
	assert.Contains(t, result.Prompt, "watercolor")
	assert.LessOrEqual(t, len(result.Prompt), 403, "промпт усечен с поправкой на многоточие")
}

func TestGenerateImage_NoAPIKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := service.NewImageClient(imageTestConfig(srv.URL, ""), zap.NewNop())
	result := client.GenerateImage(context.Background(), "a tree", imageTestRequest(), models.PlaceholderTitleImageURL, nil)

	assert.Equal(t, models.PlaceholderTitleImageURL, result.URL)
	assert.NotEmpty(t, result.Prompt, "промпт сохраняется даже при заглушке")
	assert.Zero(t, atomic.LoadInt32(&calls), "без ключа запросы не отправляются")
}

func TestGenerateImage_TaskFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/async/txt2img":
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-2"})
		case "/v3/async/task-result":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"task": map[string]string{"task_id": "task-2", "status": "FAILED", "reason": "nsfw content"},
			})
		}
	}))
	defer srv.Close()

	client := service.NewImageClient(imageTestConfig(srv.URL, "test-key"), zap.NewNop())
	result := client.GenerateImage(context.Background(), "a tree", imageTestRequest(), models.PlaceholderPageImageURL, nil)

	assert.Equal(t, models.PlaceholderPageImageURL, result.URL)
}

func TestGenerateImage_PollBudgetExhausted(t *testing.T) {
	var resultCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/async/txt2img":
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-3"})
		case "/v3/async/task-result":
			atomic.AddInt32(&resultCalls, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"task": map[string]string{"task_id": "task-3", "status": "PROCESSING"},
			})
		}
	}))
	defer srv.Close()

	client := service.NewImageClient(imageTestConfig(srv.URL, "test-key"), zap.NewNop())
	result := client.GenerateImage(context.Background(), "a tree", imageTestRequest(), models.PlaceholderPageImageURL, nil)

	assert.Equal(t, models.PlaceholderPageImageURL, result.URL)
	assert.EqualValues(t, 5, atomic.LoadInt32(&resultCalls), "число опросов ограничено бюджетом попыток")
}

func TestGenerateImage_SucceededWithoutImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/async/txt2img":
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-4"})
		case "/v3/async/task-result":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"task":   map[string]string{"task_id": "task-4", "status": "SUCCEEDED"},
				"images": []interface{}{},
			})
		}
	}))
	defer srv.Close()

	client := service.NewImageClient(imageTestConfig(srv.URL, "test-key"), zap.NewNop())
	result := client.GenerateImage(context.Background(), "a tree", imageTestRequest(), models.PlaceholderPageImageURL, nil)

	assert.Equal(t, models.PlaceholderPageImageURL, result.URL)
}

func TestGenerateImage_SubmitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := service.NewImageClient(imageTestConfig(srv.URL, "test-key"), zap.NewNop())
	result := client.GenerateImage(context.Background(), "a tree", imageTestRequest(), models.PlaceholderPageImageURL, nil)

	assert.Equal(t, models.PlaceholderPageImageURL, result.URL)
}
