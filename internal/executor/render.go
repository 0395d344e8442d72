package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/model"
	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/specialistvlad/gridhost/internal/session"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Content types of rendered bodies.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// RequestData is the part of an inbound request exposed to resource
// expressions as the `request` variable.
type RequestData struct {
	Method string
	Path   string
	// Query and Headers keep the first value of each key. Header names are
	// lower-cased.
	Query   map[string]string
	Headers map[string]string
	Body    string
}

// NewRequestData extracts RequestData from an HTTP request. The body must
// already have been read by the caller.
func NewRequestData(r *http.Request, body []byte) RequestData {
	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := make(map[string]string)
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[strings.ToLower(k)] = vs[0]
		}
	}
	return RequestData{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   query,
		Headers: headers,
		Body:    string(body),
	}
}

func (r RequestData) value() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"method":  cty.StringVal(r.Method),
		"path":    cty.StringVal(r.Path),
		"query":   stringsObject(r.Query),
		"headers": stringsObject(r.Headers),
		"body":    cty.StringVal(r.Body),
	})
}

// Response is a rendered resource.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// Render evaluates res for one request. sess may be nil when the resource
// does not use sessions or the client has none.
//
// set_session is applied first so status and body observe the updated
// attributes. invalidate_session is applied last.
func Render(ctx context.Context, scope *semantic.Scope, res *model.Resource, req RequestData, sess *session.Session) (*Response, error) {
	logger := ctxlog.FromContext(ctx).With("resource", res.Name)
	reqVal := req.value()

	evalCtx := func() (*hcl.EvalContext, error) {
		sessVal, err := sessionValue(sess)
		if err != nil {
			return nil, err
		}
		return scope.EvalContext(map[string]cty.Value{
			semantic.RequestVariable: reqVal,
			semantic.SessionVariable: sessVal,
		}), nil
	}

	ectx, err := evalCtx()
	if err != nil {
		return nil, err
	}

	if model.IsDefined(res.SetSession) {
		updated, err := applySetSession(res.SetSession, ectx, sess)
		if err != nil {
			return nil, err
		}
		if updated {
			if ectx, err = evalCtx(); err != nil {
				return nil, err
			}
		} else {
			logger.Warn("Resource sets session attributes but the request has no session.")
		}
	}

	resp := &Response{Status: http.StatusOK, ContentType: ContentTypeText}

	if model.IsDefined(res.Status) {
		status, err := evalStatus(res.Status, ectx)
		if err != nil {
			return nil, err
		}
		resp.Status = status
	}

	if model.IsDefined(res.Body) {
		v, diags := res.Body.Value(ectx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating body: %w", diags)
		}
		body, contentType, err := encodeBody(v)
		if err != nil {
			return nil, err
		}
		resp.Body, resp.ContentType = body, contentType
	}

	if model.IsDefined(res.Invalidate) {
		invalidate, err := evalBool(res.Invalidate, ectx, "invalidate_session")
		if err != nil {
			return nil, err
		}
		if invalidate && sess != nil {
			sess.Invalidate()
			logger.Debug("Session invalidated by resource.", "session_id", sess.ID())
		}
	}

	return resp, nil
}

// sessionValue builds the `session` variable. A missing or invalidated
// session is an empty id with no attributes.
func sessionValue(sess *session.Session) (cty.Value, error) {
	empty := cty.ObjectVal(map[string]cty.Value{
		"id":         cty.StringVal(""),
		"is_new":     cty.False,
		"attributes": cty.EmptyObjectVal,
	})
	if sess == nil {
		return empty, nil
	}
	attrs, err := sess.Attributes()
	if errors.Is(err, session.ErrInvalidSession) {
		return empty, nil
	}
	if err != nil {
		return cty.NilVal, err
	}
	attrVal, err := objectFromMap(attrs)
	if err != nil {
		return cty.NilVal, fmt.Errorf("session %s: %w", sess.ID(), err)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"id":         cty.StringVal(sess.ID()),
		"is_new":     cty.BoolVal(sess.IsNew()),
		"attributes": attrVal,
	}), nil
}

// applySetSession stores every attribute of the set_session object in sess.
// It reports false when there is no session to write to. A null object is a
// no-op.
func applySetSession(expr hcl.Expression, ectx *hcl.EvalContext, sess *session.Session) (bool, error) {
	v, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluating set_session: %w", diags)
	}
	if v.IsNull() {
		return true, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return false, fmt.Errorf("set_session must be an object, got %s", v.Type().FriendlyName())
	}
	if sess == nil || !sess.IsValid() {
		return false, nil
	}
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		if err := sess.SetAttribute(k.AsString(), val); err != nil {
			return false, err
		}
	}
	return true, nil
}

func evalStatus(expr hcl.Expression, ectx *hcl.EvalContext) (int, error) {
	v, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("evaluating status: %w", diags)
	}
	if v.IsNull() {
		return http.StatusOK, nil
	}
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("status must be a number: %w", err)
	}
	status, acc := n.AsBigFloat().Int64()
	if acc != big.Exact || status < 100 || status > 599 {
		return 0, fmt.Errorf("status %s is not a valid HTTP status code", n.AsBigFloat().String())
	}
	return int(status), nil
}

func evalBool(expr hcl.Expression, ectx *hcl.EvalContext, attr string) (bool, error) {
	v, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluating %s: %w", attr, diags)
	}
	if v.IsNull() {
		return false, nil
	}
	b, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("%s must be a bool: %w", attr, err)
	}
	return b.True(), nil
}

// encodeBody renders strings verbatim and everything else as JSON.
func encodeBody(v cty.Value) ([]byte, string, error) {
	if v.IsNull() {
		return nil, ContentTypeText, nil
	}
	if !v.IsWhollyKnown() {
		return nil, "", fmt.Errorf("body is not fully known")
	}
	if v.Type() == cty.String {
		return []byte(v.AsString()), ContentTypeText, nil
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, "", fmt.Errorf("encoding body as JSON: %w", err)
	}
	return b, ContentTypeJSON, nil
}
