package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/infra/logging"
	"activity-engine/internal/usecase"
	"activity-engine/internal/validation"
)

// multipartMemory is the in-memory share of a multipart body; larger parts spill to disk.
const multipartMemory = 8 << 20

type Handlers struct {
	activities usecase.ActivityUseCase
	roster     usecase.RosterUseCase
	payments   usecase.PaymentUseCase
	users      usecase.UserUseCase
	log        *zerolog.Logger
}

func NewHandlers(
	activities usecase.ActivityUseCase,
	roster usecase.RosterUseCase,
	payments usecase.PaymentUseCase,
	users usecase.UserUseCase,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		activities: activities,
		roster:     roster,
		payments:   payments,
		users:      users,
		log:        logger,
	}
}

// ===== Activities =====

func (h *Handlers) CreateActivity(w http.ResponseWriter, r *http.Request) {
	fields, files, cleanup, err := readActivityForm(r)
	defer cleanup()
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.activities.Create(r.Context(), ActorFrom(r.Context()), fields, files)
	if err != nil {
		h.fail(w, r, "create activity", err)
		return
	}
	writeData(w, http.StatusCreated, a, "activity created")
}

func (h *Handlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bad := map[string]string{}
	page := queryInt(q.Get("page"), 1, "page", bad)
	limit := queryInt(q.Get("limit"), usecase.DefaultPageLimit, "limit", bad)
	if len(bad) > 0 {
		writeError(w, &validation.Error{Fields: bad})
		return
	}

	res, err := h.activities.List(r.Context(), model.ActivityFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, "list activities", err)
		return
	}
	writeData(w, http.StatusOK, res, "")
}

func (h *Handlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.activities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get activity", err)
		return
	}
	writeData(w, http.StatusOK, a, "")
}

func (h *Handlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.activities.Participants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list participants", err)
		return
	}
	writeData(w, http.StatusOK, ps, "")
}

func (h *Handlers) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	var patch model.ActivityPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	a, err := h.activities.Update(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update activity", err)
		return
	}
	writeData(w, http.StatusOK, a, "activity updated")
}

// ===== Roster =====

func (h *Handlers) JoinActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.roster.Join(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "join activity", err)
		return
	}
	writeData(w, http.StatusOK, a, "joined activity")
}

func (h *Handlers) LeaveActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.roster.Leave(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "leave activity", err)
		return
	}
	writeData(w, http.StatusOK, a, "left activity")
}

// ===== Payments =====

type orderView struct {
	OrderID          string `json:"orderId"`
	PaymentSessionID string `json:"paymentSessionId,omitempty"`
	PaymentURL       string `json:"paymentUrl,omitempty"`
}

type payResponse struct {
	Payment *model.ActivityPayment `json:"payment"`
	Order   orderView              `json:"order"`
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	p, order, err := h.payments.CreateOrder(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		code := statusFor(err)
		// a full roster can not be paid for, the request itself is the problem
		if errors.Is(err, domain.ErrActivityFull) {
			code = http.StatusBadRequest
		}
		h.failStatus(w, r, "create payment", code, err)
		return
	}
	out := payResponse{Payment: p, Order: orderView{OrderID: p.ProviderRef, PaymentSessionID: p.PaymentSessionID}}
	if order != nil {
		out.Order = orderView{OrderID: order.OrderID, PaymentSessionID: order.SessionID, PaymentURL: order.PaymentURL}
	}
	writeData(w, http.StatusOK, out, "payment order created")
}

type verifyRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.payments.Verify(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), req.GatewayOrderID)
	if err != nil {
		h.fail(w, r, "verify payment", err)
		return
	}
	writeData(w, http.StatusOK, p, "payment verified")
}

// PaymentReturn is the gateway redirect target. It verifies the order and renders a result page.
func (h *Handlers) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))
	if orderID == "" {
		renderReturnPage(w, http.StatusBadRequest, false, "missing order_id")
		return
	}

	p, err := h.payments.VerifyByOrderID(r.Context(), orderID)
	switch {
	case err == nil:
		renderReturnPage(w, http.StatusOK, true, fmt.Sprintf("Payment of %d %s received. You are on the roster.", p.Amount, p.Currency))
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		renderReturnPage(w, http.StatusOK, false, "Payment was not completed. You can retry from the activity page.")
	case errors.Is(err, domain.ErrActivityFull):
		renderReturnPage(w, http.StatusConflict, false, "Payment received but the activity filled up before your seat was confirmed. Please contact support.")
	case errors.Is(err, domain.ErrPaymentNotFound):
		renderReturnPage(w, http.StatusNotFound, false, "Unknown payment order.")
	default:
		l := logging.With(r.Context(), h.log)
		l.Error().Err(err).Str("order_id", orderID).Msg("payment return verification failed")
		renderReturnPage(w, statusFor(err), false, "We could not confirm your payment yet. Please check again shortly.")
	}
}

// ===== Users =====

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Profile(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, "load profile", err)
		return
	}
	writeData(w, http.StatusOK, p, "")
}

// ===== helpers =====

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.failStatus(w, r, op, statusFor(err), err)
}

func (h *Handlers) failStatus(w http.ResponseWriter, r *http.Request, op string, code int, err error) {
	if code >= http.StatusInternalServerError {
		l := logging.With(r.Context(), h.log)
		l.Error().Err(err).Str("op", op).Msg("request failed")
	}
	writeErrorStatus(w, code, err)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &validation.Error{Fields: map[string]string{"body": "is too large"}}
		}
		if errors.Is(err, io.EOF) {
			return &validation.Error{Fields: map[string]string{"body": "is required"}}
		}
		return &validation.Error{Fields: map[string]string{"body": "must be valid JSON"}}
	}
	return nil
}

func queryInt(raw string, def int, field string, bad map[string]string) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		bad[field] = "must be a number"
		return def
	}
	return n
}

// readActivityForm accepts either a JSON body or a multipart form whose fields come from
// a "data" JSON part or individual form values, plus "photos" file parts.
func readActivityForm(r *http.Request) (model.ActivityFields, []adapter.MediaFile, func(), error) {
	var fields model.ActivityFields
	noop := func() {}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		err := decodeJSON(r, &fields)
		return fields, nil, noop, err
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fields, nil, noop, &validation.Error{Fields: map[string]string{"photos": "upload is too large"}}
		}
		return fields, nil, noop, &validation.Error{Fields: map[string]string{"body": "malformed multipart form"}}
	}
	form := r.MultipartForm

	if data := form.Value["data"]; len(data) > 0 {
		if err := json.Unmarshal([]byte(data[0]), &fields); err != nil {
			return fields, nil, noop, &validation.Error{Fields: map[string]string{"data": "must be valid JSON"}}
		}
	} else if err := formFields(form.Value, &fields); err != nil {
		return fields, nil, noop, err
	}

	headers := form.File["photos"]
	opened := make([]multipart.File, 0, len(headers))
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = form.RemoveAll()
	}
	files := make([]adapter.MediaFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return fields, nil, cleanup, fmt.Errorf("%w: open photo %q: %w", domain.ErrUploadFailed, fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, adapter.MediaFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return fields, files, cleanup, nil
}

func formFields(v map[string][]string, f *model.ActivityFields) error {
	get := func(k string) string {
		if vs := v[k]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}
	f.Title = get("title")
	f.Description = get("description")
	f.Category = get("category")
	f.Location = get("location")
	f.Date = get("date")
	f.StartTime = get("startTime")
	f.EndTime = get("endTime")
	f.Currency = get("currency")

	bad := map[string]string{}
	if s := get("price"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			bad["price"] = "must be a number"
		}
		f.Price = n
	}
	if s := get("maxCapacity"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			bad["maxCapacity"] = "must be a number"
		}
		f.MaxCapacity = n
	}
	if len(bad) > 0 {
		return &validation.Error{Fields: bad}
	}
	return nil
}
