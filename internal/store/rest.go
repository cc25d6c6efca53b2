package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/partlog/internal/model"
)

// changeSelect embeds the related printer and spare part in change rows.
const changeSelect = "*,printers(name),spare_parts(code,description,high_rotation)"

// REST is a Gateway backed by the managed store's HTTP API: PostgREST-style
// collections under /rest/v1 and the auth service under /auth/v1.
//
// Requests carry the project API key plus the caller's access token, and the
// store enforces row-level access control with that token.
type REST struct {
	client *resty.Client
	apiKey string
}

// NewREST creates a gateway for the store at baseURL. Requests are never
// retried.
func NewREST(baseURL, apiKey string, timeout time.Duration) *REST {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("apikey", apiKey).
		SetHeader("Accept", "application/json")

	return &REST{client: client, apiKey: apiKey}
}

var (
	_ Gateway       = (*REST)(nil)
	_ Authenticator = (*REST)(nil)
)

// request starts a request authorized with the session token in ctx, or the
// API key when there is none.
func (s *REST) request(ctx context.Context) *resty.Request {
	token := s.apiKey
	if sess, ok := SessionFromContext(ctx); ok && sess.AccessToken != "" {
		token = sess.AccessToken
	}
	return s.client.R().SetContext(ctx).SetAuthToken(token)
}

// List fetches the matching rows and decodes them into dst.
func (s *REST) List(ctx context.Context, coll Collection, q Query, dst any) error {
	if err := checkQuery(coll, q); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("select", "*")
	if coll == PartChanges {
		params.Set("select", changeSelect)
	}
	addFilters(params, q.Filters)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	resp, err := s.request(ctx).
		SetQueryParamsFromValues(params).
		Get(collectionPath(coll))
	if err != nil {
		return fmt.Errorf("list %s: %w", coll, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

// Insert creates one row. The owner is taken from the context user when the
// fields do not name one.
func (s *REST) Insert(ctx context.Context, coll Collection, fields Fields) error {
	if err := checkFields(coll, fields); err != nil {
		return err
	}
	if _, ok := fields["user_id"]; !ok {
		if u := UserFromContext(ctx); u != nil {
			fields = withField(fields, "user_id", u.ID)
		}
	}

	resp, err := s.request(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(fields).
		Post(collectionPath(coll))
	if err != nil {
		return fmt.Errorf("insert %s: %w", coll, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

// Update patches the row with id. The store answers with the patched ids,
// so a row that does not exist or is not visible yields ErrNotFound.
func (s *REST) Update(ctx context.Context, coll Collection, id string, fields Fields) error {
	if err := checkFields(coll, fields); err != nil {
		return err
	}

	resp, err := s.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetQueryParam("select", "id").
		SetBody(fields).
		Patch(collectionPath(coll))
	if err != nil {
		return fmt.Errorf("update %s: %w", coll, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}

	var updated []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body(), &updated); err != nil {
		return fmt.Errorf("decode update %s: %w", coll, err)
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes every row matching all filters.
func (s *REST) Delete(ctx context.Context, coll Collection, filters ...Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete from %s: refusing to delete without a filter", coll)
	}
	if err := checkQuery(coll, Query{Filters: filters}); err != nil {
		return err
	}

	params := url.Values{}
	addFilters(params, filters)

	resp, err := s.request(ctx).
		SetQueryParamsFromValues(params).
		Delete(collectionPath(coll))
	if err != nil {
		return fmt.Errorf("delete %s: %w", coll, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

// CurrentUser asks the auth service who owns the session token. Rejected
// tokens yield a nil user and no error.
func (s *REST) CurrentUser(ctx context.Context) (*model.User, error) {
	sess, ok := SessionFromContext(ctx)
	if !ok || sess.AccessToken == "" {
		return nil, nil
	}

	var user model.User
	resp, err := s.request(ctx).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return nil, nil
	case resp.IsError():
		return nil, responseError(resp)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// SignOut revokes the session token.
func (s *REST) SignOut(ctx context.Context) error {
	sess, ok := SessionFromContext(ctx)
	if !ok || sess.AccessToken == "" {
		return nil
	}
	resp, err := s.request(ctx).Post("/auth/v1/logout")
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		return responseError(resp)
	}
	return nil
}

// SignIn exchanges an email and password for a session.
func (s *REST) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&sess).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	if sess.AccessToken == "" {
		return nil, ErrUnauthenticated
	}
	return &sess, nil
}

func collectionPath(coll Collection) string {
	return "/rest/v1/" + string(coll)
}

func addFilters(params url.Values, filters []Filter) {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			params.Add(f.Column, "eq."+f.Values[0])
		case OpIn:
			quoted := make([]string, len(f.Values))
			for i, v := range f.Values {
				quoted[i] = quoteListValue(v)
			}
			params.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		}
	}
}

// quoteListValue double-quotes values that contain list delimiters.
func quoteListValue(v string) string {
	if !strings.ContainsAny(v, `,()"`) {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

func withField(f Fields, key string, value any) Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[key] = value
	return out
}

// responseError decodes the store's error body. The auth service and the
// collections API use different field names for the message.
func responseError(resp *resty.Response) error {
	var body struct {
		Error
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.Unmarshal(resp.Body(), &body)

	e := body.Error
	e.Status = resp.StatusCode()
	if e.Code == "" {
		e.Code = body.ErrorCode
	}
	for _, m := range []string{body.Msg, body.ErrorDescription, resp.Status()} {
		if e.Message != "" {
			break
		}
		e.Message = m
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("store returned HTTP %d", e.Status)
	}
	return &e
}
