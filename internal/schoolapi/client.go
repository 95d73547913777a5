package schoolapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/avdushin/minuet-bot/internal/model"
)

// ErrAuthorizationFailed — логин отклонён или профиль недоступен после
// логина. При старте это фатально; в работе делает экземпляр клиента
// непригодным.
var ErrAuthorizationFailed = errors.New("authorization failed")

const (
	requestTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

	signupStatusOK = 1
)

// Бэкенд принимает и отдаёт локальное время с фиксированным офсетом.
// Границы дат нельзя сдвигать через UTC.
var backendZone = time.FixedZone("MSK", 3*60*60)

// envelope — обёртка ответа бэкенда: result против meta.error.
// meta.error может прийти и с успешным транспортным статусом.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Meta   struct {
		Error json.RawMessage `json:"error"`
	} `json:"meta"`
}

func (e *envelope) metaError() (string, bool) {
	raw := e.Meta.Error
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	return string(raw), true
}

// Client — авторизованная сессия к бэкенду автошколы. Владеет токеном
// и прозрачно переавторизуется при его истечении.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	logger     *zap.Logger

	token     string
	studentID int64
}

// New выполняет логин и загружает профиль. Без идентификатора студента
// запись на занятия невозможна, поэтому неудача здесь — отказ авторизации.
func New(ctx context.Context, baseURL, email, password string, logger *zap.Logger) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		password:   password,
		logger:     logger,
	}

	if err := c.login(ctx); err != nil {
		return nil, err
	}

	profile, err := c.Profile(ctx)
	if err != nil {
		logger.Error("Failed to fetch student profile", zap.Error(err))
		return nil, fmt.Errorf("%w: fetch profile after login: %v", ErrAuthorizationFailed, err)
	}
	c.studentID = profile.StudentDetails.ID

	logger.Info("Profile loaded", zap.Int64("student_id", c.studentID))
	return c, nil
}

// StudentID возвращает идентификатор студента, определённый при логине.
func (c *Client) StudentID() int64 {
	return c.studentID
}

// login получает новый токен. Любая неудача — транспортная ошибка,
// не-JSON тело, meta.error или отсутствующий токен — это отказ авторизации.
func (c *Client) login(ctx context.Context) error {
	c.logger.Info("Refreshing access token")

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal credentials: %v", ErrAuthorizationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build login request: %v", ErrAuthorizationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Login request failed", zap.Error(err))
		return fmt.Errorf("%w: login request: %v", ErrAuthorizationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read login response: %v", ErrAuthorizationFailed, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: unexpected login response: %s", ErrAuthorizationFailed, raw)
	}

	if msg, ok := env.metaError(); ok {
		return fmt.Errorf("%w: %s", ErrAuthorizationFailed, msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: login returned status %d", ErrAuthorizationFailed, resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil || result.Token == "" {
		return fmt.Errorf("%w: login response has no token", ErrAuthorizationFailed)
	}

	c.token = result.Token
	c.logger.Info("Token refreshed")
	return nil
}

// call — единая точка выполнения запросов: подставляет токен и на 401/403
// делает ровно одну переавторизацию с одним повтором того же запроса.
// Остальные неуспешные статусы и транспортные ошибки пробрасываются.
func (c *Client) call(ctx context.Context, httpMethod, method string, payload any) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", method, err)
		}
	}

	resp, err := c.doRequest(ctx, httpMethod, method, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		c.logger.Warn("Token expired or invalid, re-authenticating")
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		resp, err = c.doRequest(ctx, httpMethod, method, body)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("API call failed",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("call %s: status %d", method, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if msg, ok := env.metaError(); ok {
		return nil, fmt.Errorf("call %s: api error: %s", method, msg)
	}

	return env.Result, nil
}

func (c *Client) doRequest(ctx context.Context, httpMethod, method string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+"/"+method, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return resp, nil
}

// Profile получает профиль авторизованного пользователя.
func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	result, err := c.call(ctx, http.MethodGet, "auth/profile", nil)
	if err != nil {
		return nil, err
	}

	var profile model.Profile
	if err := json.Unmarshal(result, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// CarInfo получает данные о машине и инструкторе.
func (c *Client) CarInfo(ctx context.Context, carID int64) (*model.CarInfo, error) {
	result, err := c.call(ctx, http.MethodGet, fmt.Sprintf("car/%d", carID), nil)
	if err != nil {
		return nil, err
	}

	var info model.CarInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("decode car info: %w", err)
	}
	return &info, nil
}

// AvailableSlots ищет свободные слоты для пары (машина, инструктор)
// в заданном диапазоне дат. Возвращает только слоты с isFree == true.
func (c *Client) AvailableSlots(ctx context.Context, carID, teacherID int64, dateFrom, dateTo time.Time) ([]model.Slot, error) {
	payload := map[string]any{
		"carId":     carID,
		"teacherId": teacherID,
		"dateFrom":  formatSearchDate(dateFrom),
		"dateTo":    formatSearchDate(dateTo),
	}

	c.logger.Info("Checking schedule",
		zap.Int64("car_id", carID),
		zap.Int64("teacher_id", teacherID),
		zap.String("date_from", dateFrom.Format("02.01.2006")),
		zap.String("date_to", dateTo.Format("02.01.2006")))

	result, err := c.call(ctx, http.MethodPost, "driving-entry/search", payload)
	if err != nil {
		return nil, err
	}

	var slots []model.Slot
	if err := json.Unmarshal(result, &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}

	free := slots[:0]
	for _, slot := range slots {
		if slot.IsFree {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Signup записывает студента на занятие. Отказ (слот уже занят) —
// ожидаемый исход, поэтому это значение, а не ошибка.
func (c *Client) Signup(ctx context.Context, slotID int64) (bool, error) {
	c.logger.Info("Signing up for driving entry",
		zap.Int64("slot_id", slotID),
		zap.Int64("student_id", c.studentID))

	result, err := c.call(ctx, http.MethodPost, fmt.Sprintf("driving-entry/%d/signup", slotID),
		map[string]int64{"studentId": c.studentID})
	if err != nil {
		return false, err
	}

	var status struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(result, &status); err != nil {
		return false, fmt.Errorf("decode signup response: %w", err)
	}

	if status.Status != signupStatusOK {
		c.logger.Warn("Signup rejected",
			zap.Int64("slot_id", slotID),
			zap.Int("status", status.Status))
		return false, nil
	}

	c.logger.Info("Signup succeeded", zap.Int64("slot_id", slotID))
	return true, nil
}

// formatSearchDate сериализует полночь календарной даты в локальной зоне
// бэкенда: 2025-08-27T00:00:00+03:00.
func formatSearchDate(d time.Time) string {
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, backendZone)
	return midnight.Format("2006-01-02T15:04:05-07:00")
}
