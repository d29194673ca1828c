package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"synergysphere/internal/domain"
)

// Client da acceso tipado a la API de la plataforma.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option personaliza la construccion del cliente.
type Option func(*Client)

// WithHTTPClient reemplaza el cliente HTTP por defecto.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New construye un Client para la URL base y la clave publica dadas.
func New(base, apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, errors.New("empty api base url")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError representa una respuesta de error de la API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// Kind clasifica el error segun el status HTTP.
func (e APIError) Kind() domain.ErrorKind {
	switch {
	case e.Status == http.StatusNotFound:
		return domain.KindNotFound
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return domain.KindUnauthorized
	case e.Status == http.StatusConflict:
		return domain.KindConflict
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return domain.KindInvalid
	case e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError:
		return domain.KindTransient
	default:
		return domain.KindUnknown
	}
}

// transportError marca fallos de red como transitorios.
type transportError struct{ err error }

func (e transportError) Error() string          { return "perform request: " + e.err.Error() }
func (e transportError) Unwrap() error          { return e.err }
func (e transportError) Kind() domain.ErrorKind { return domain.KindTransient }

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

type sessionResponse struct {
	User    domain.User    `json:"user"`
	Session domain.Session `json:"session"`
}

// SignUp crea la cuenta y su perfil y devuelve la sesion abierta.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (domain.Session, error) {
	body := map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, "", &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.Session, nil
}

// SignIn intercambia credenciales por una sesion.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, "", &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.Session, nil
}

// Refresh rota el refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	var resp sessionResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, "", &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.Session, nil
}

// SignOut revoca el refresh token de la sesion.
func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.do(ctx, http.MethodPost, "/auth/signout", body, "", nil)
}

// GetProfile devuelve la fila de perfil del usuario.
func (c *Client) GetProfile(ctx context.Context, token, userID string) (domain.Profile, error) {
	var resp struct {
		Profile domain.Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), nil, token, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.Profile, nil
}

type projectEnvelope struct {
	Project domain.Project `json:"project"`
}

func (c *Client) CreateProject(ctx context.Context, token string, input domain.NewProject) (domain.Project, error) {
	var resp projectEnvelope
	if err := c.do(ctx, http.MethodPost, "/projects", input, token, &resp); err != nil {
		return domain.Project{}, err
	}
	return resp.Project, nil
}

// ListProjects devuelve los proyectos del titular del token.
func (c *Client) ListProjects(ctx context.Context, token string) ([]domain.Project, error) {
	var resp struct {
		Projects []domain.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *Client) GetProject(ctx context.Context, token, projectID string) (domain.Project, error) {
	var resp projectEnvelope
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, token, &resp); err != nil {
		return domain.Project{}, err
	}
	return resp.Project, nil
}

func (c *Client) UpdateProject(ctx context.Context, token, projectID string, update domain.ProjectUpdate) (domain.Project, error) {
	var resp projectEnvelope
	if err := c.do(ctx, http.MethodPatch, "/projects/"+url.PathEscape(projectID), update, token, &resp); err != nil {
		return domain.Project{}, err
	}
	return resp.Project, nil
}

// DeleteProject trata "no encontrado" como exito.
func (c *Client) DeleteProject(ctx context.Context, token, projectID string) error {
	err := c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(projectID), nil, token, nil)
	var apiErr APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) AddProjectMember(ctx context.Context, token, projectID, userID string) (domain.Project, error) {
	var resp projectEnvelope
	body := map[string]string{"user_id": userID}
	if err := c.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/members", body, token, &resp); err != nil {
		return domain.Project{}, err
	}
	return resp.Project, nil
}

func (c *Client) RemoveProjectMember(ctx context.Context, token, projectID, userID string) (domain.Project, error) {
	var resp projectEnvelope
	path := "/projects/" + url.PathEscape(projectID) + "/members/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodDelete, path, nil, token, &resp); err != nil {
		return domain.Project{}, err
	}
	return resp.Project, nil
}
