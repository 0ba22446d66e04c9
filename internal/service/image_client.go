package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/models"
	"storybook-server/internal/prompt"
)

const (
	// imagePromptMaxLength - жесткий лимит графического API на длину промпта.
	imagePromptMaxLength = 400

	// imageNegativePrompt - фиксированный негативный промпт всех заданий.
	imageNegativePrompt = "blurry, low quality, distorted, text, watermark, signature, bad anatomy"

	// defaultImageCheckpoint - канонический чекпоинт при неизвестной модели.
	defaultImageCheckpoint = "cyberrealistic_v31_62396.safetensors"

	// queuedLogEvery - каждая какая по счету попытка опроса логируется,
	// пока задание стоит в очереди.
	queuedLogEvery = 6
)

// imageModelCheckpoints - соответствие выбора модели в запросе реальному
// чекпоинту бэкенда.
var imageModelCheckpoints = map[string]string{
	"cyberrealistic": "cyberrealistic_v31_62396.safetensors",
	"dreamshaper":    "dreamshaper_8_93211.safetensors",
	"majicmix":       "majicmixRealistic_v7_134792.safetensors",
	"anything":       "anything-v5-PrtRE_7396.safetensors",
}

// resolveCheckpoint возвращает чекпоинт для выбранной модели или канонический
// чекпоинт, если модель не задана или неизвестна.
func resolveCheckpoint(imageModel string) string {
	if cp, ok := imageModelCheckpoints[strings.ToLower(imageModel)]; ok {
		return cp
	}
	return defaultImageCheckpoint
}

// Статусы задания графического API.
const (
	taskStatusQueued     = "QUEUED"
	taskStatusProcessing = "PROCESSING"
	taskStatusSucceeded  = "SUCCEEDED"
	taskStatusFailed     = "FAILED"
)

var (
	imageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storybook_image_requests_total",
			Help: "Total number of image generation runs by outcome.",
		},
		[]string{"outcome"},
	)
	imageGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storybook_image_generation_duration_seconds",
			Help:    "Histogram of full image generation durations (submit + poll).",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// ImageClient генерирует одну иллюстрацию по базовому промпту.
type ImageClient interface {
	// GenerateImage всегда возвращает результат: при любом сбое URL
	// заменяется переданной заглушкой. Ошибки наружу не выходят.
	GenerateImage(ctx context.Context, basePrompt string, req *models.StoryRequest, placeholderURL string, trace TraceFunc) models.ImageResult
}

// novitaImageClient - клиент Novita-совместимого txt2img API с асинхронными
// заданиями и опросом статуса.
type novitaImageClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollAttempts int
	pollDeadline time.Duration
	seedFn       func() int64
	logger       *zap.Logger
}

// NewImageClient создает клиент генерации изображений.
func NewImageClient(cfg *config.Config, logger *zap.Logger) ImageClient {
	return &novitaImageClient{
		httpClient:   &http.Client{Timeout: cfg.ImageTimeout},
		baseURL:      strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		apiKey:       cfg.ImageAPIKey,
		pollInterval: cfg.ImagePollInterval,
		pollAttempts: cfg.ImagePollAttempts,
		pollDeadline: cfg.ImagePollDeadline,
		seedFn:       func() int64 { return rand.Int63() },
		logger:       logger,
	}
}

type txt2imgRequest struct {
	ModelName      string  `json:"model_name"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	SamplerName    string  `json:"sampler_name"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Steps          int     `json:"steps"`
	ImageNum       int     `json:"image_num"`
	ClipSkip       int     `json:"clip_skip"`
	Seed           int64   `json:"seed"`
}

type txt2imgResponse struct {
	TaskID string `json:"task_id"`
}

type taskResultResponse struct {
	Task struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"task"`
	Images []struct {
		ImageURL string `json:"image_url"`
	} `json:"images"`
}

// GenerateImage усекает и обогащает промпт, отправляет задание и опрашивает
// его до готовности. Каждый путь сбоя (ошибка отправки, FAILED, исчерпание
// бюджета опроса, успешный ответ без картинок) разрешается заглушкой.
func (c *novitaImageClient) GenerateImage(ctx context.Context, basePrompt string, req *models.StoryRequest, placeholderURL string, trace TraceFunc) models.ImageResult {
	startTime := time.Now()
	defer func() {
		imageGenerationDuration.Observe(time.Since(startTime).Seconds())
	}()

	finalPrompt := prompt.TruncatePrompt(prompt.EnhanceImagePrompt(basePrompt, req), imagePromptMaxLength)
	result := models.ImageResult{Prompt: finalPrompt}

	checkpoint := resolveCheckpoint(req.ImageModel)
	trace.Emit("system", "Sending prompt to image API...")
	trace.Emit("system", fmt.Sprintf("Model: %s", checkpoint))
	trace.Emit("prompt", fmt.Sprintf("Prompt: %.80s...", finalPrompt))

	taskID, err := c.submit(ctx, checkpoint, finalPrompt)
	if err != nil {
		c.logger.Warn("Отправка графического задания не удалась", zap.Error(err))
		trace.Emit("system", fmt.Sprintf("Image generation failed: %v", err))
		imageRequestsTotal.With(prometheus.Labels{"outcome": "placeholder_submit"}).Inc()
		result.URL = placeholderURL
		return result
	}

	trace.Emit("system", fmt.Sprintf("Task queued: %s", taskID))
	trace.Emit("system", "Waiting for image generation...")

	imageURL, outcome, err := c.poll(ctx, taskID, trace)
	if err != nil {
		c.logger.Warn("Задание не дало изображения",
			zap.String("task_id", taskID),
			zap.String("outcome", outcome),
			zap.Error(err))
		trace.Emit("system", fmt.Sprintf("Image generation failed: %v", err))
		imageRequestsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
		result.URL = placeholderURL
		return result
	}

	trace.Emit("response", "Generation completed successfully!")
	imageRequestsTotal.With(prometheus.Labels{"outcome": "success"}).Inc()
	result.URL = imageURL
	return result
}

// submit отправляет задание txt2img и возвращает его идентификатор.
func (c *novitaImageClient) submit(ctx context.Context, checkpoint, finalPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("image API key is not configured")
	}

	body := struct {
		Request txt2imgRequest `json:"request"`
	}{
		Request: txt2imgRequest{
			ModelName:      checkpoint,
			Prompt:         finalPrompt,
			NegativePrompt: imageNegativePrompt,
			Width:          1024,
			Height:         768,
			SamplerName:    "DPM++ 2S a Karras",
			GuidanceScale:  7.5,
			Steps:          20,
			ImageNum:       1,
			ClipSkip:       1,
			// Свежий seed на каждый вызов, чтобы страницы не совпадали
			Seed: c.seedFn(),
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации задания: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/async/txt2img", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ошибка запроса к графическому API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("графический API вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ошибка разбора ответа графического API: %w", err)
	}
	if parsed.TaskID == "" {
		return "", errors.New("графический API не вернул task_id")
	}
	return parsed.TaskID, nil
}

// poll опрашивает статус задания с постоянным интервалом до готовности,
// отказа или исчерпания бюджета (число попыток и общий дедлайн).
// Возвращает URL изображения либо метку исхода для метрик и ошибку.
func (c *novitaImageClient) poll(ctx context.Context, taskID string, trace TraceFunc) (string, string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.pollDeadline)
	defer cancel()

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		res, err := c.taskResult(pollCtx, taskID)
		if err != nil {
			if pollCtx.Err() != nil {
				return "", "placeholder_timeout", fmt.Errorf("бюджет опроса исчерпан: %w", pollCtx.Err())
			}
			// Сбой одного опроса не фатален, попытка засчитывается
			c.logger.Debug("Опрос задания не удался",
				zap.String("task_id", taskID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		} else {
			switch normalizeTaskStatus(res.Task.Status) {
			case taskStatusSucceeded:
				if len(res.Images) == 0 || res.Images[0].ImageURL == "" {
					return "", "placeholder_empty", errors.New("успешный ответ без изображений")
				}
				return res.Images[0].ImageURL, "success", nil
			case taskStatusFailed:
				reason := res.Task.Reason
				if reason == "" {
					reason = "unknown error"
				}
				return "", "placeholder_failed", fmt.Errorf("задание отклонено: %s", reason)
			case taskStatusQueued:
				if attempt%queuedLogEvery == 0 {
					elapsed := time.Duration(attempt) * c.pollInterval
					trace.Emit("system", fmt.Sprintf("Still in queue... (%dm %ds)",
						int(elapsed.Minutes()), int(elapsed.Seconds())%60))
				}
			case taskStatusProcessing:
				// Ждем следующий опрос
			}
		}

		select {
		case <-pollCtx.Done():
			return "", "placeholder_timeout", fmt.Errorf("бюджет опроса исчерпан: %w", pollCtx.Err())
		case <-time.After(c.pollInterval):
		}
	}

	return "", "placeholder_timeout", fmt.Errorf("задание не завершилось за %d попыток", c.pollAttempts)
}

// taskResult запрашивает текущее состояние задания.
func (c *novitaImageClient) taskResult(ctx context.Context, taskID string) (*taskResultResponse, error) {
	endpoint := c.baseURL + "/v3/async/task-result?task_id=" + url.QueryEscape(taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("статус опроса %d", resp.StatusCode)
	}

	var parsed taskResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора статуса задания: %w", err)
	}
	return &parsed, nil
}

// normalizeTaskStatus приводит статус к короткой форме: часть бэкендов
// возвращает TASK_STATUS_SUCCEED вместо SUCCEEDED.
func normalizeTaskStatus(status string) string {
	s := strings.TrimPrefix(strings.ToUpper(status), "TASK_STATUS_")
	if s == "SUCCEED" {
		return taskStatusSucceeded
	}
	return s
}
