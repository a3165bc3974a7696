package api

import (
	"net/http"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

const (
	// DefaultDigestWindow is used when a digest request has no since.
	DefaultDigestWindow = 24 * time.Hour
	// maxDigestRecords bounds the records loaded for one digest.
	maxDigestRecords = 10000
)

// ListDeliveries lists a user's delivery records, newest first.
// GET /api/v1/deliveries?user_id=&status=&channel=&limit=&offset=
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireQueryParam(w, r, "user_id")
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := store.DeliveryFilter{UserID: userID}
	if s := q.Get("status"); s != "" {
		filter.Status = delivery.Status(s)
		if !filter.Status.Valid() {
			http.Error(w, "unknown status "+s, http.StatusBadRequest)
			return
		}
	}
	if c := q.Get("channel"); c != "" {
		filter.Channel = delivery.Channel(c)
		if !filter.Channel.Valid() {
			http.Error(w, "unknown channel "+c, http.StatusBadRequest)
			return
		}
	}
	p := parsePagination(r)
	filter.Limit, filter.Offset = p.Limit, p.Offset

	records, err := h.repo.ListDeliveries(r.Context(), filter)
	if err != nil {
		handleStoreError(w, err, "delivery", userID)
		return
	}
	if records == nil {
		records = []*delivery.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetDelivery retrieves a delivery record by ID.
// GET /api/v1/deliveries?delivery_id=
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	deliveryID, ok := requireQueryParam(w, r, "delivery_id")
	if !ok {
		return
	}

	rec, err := h.repo.GetDelivery(r.Context(), deliveryID)
	if err != nil {
		handleStoreError(w, err, "delivery", deliveryID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListLogs returns a delivery's audit log in append order.
// GET /api/v1/deliveries/logs?delivery_id=
func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	deliveryID, ok := requireQueryParam(w, r, "delivery_id")
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.repo.GetDelivery(ctx, deliveryID); err != nil {
		handleStoreError(w, err, "delivery", deliveryID)
		return
	}
	entries, err := h.repo.ListLogs(ctx, deliveryID)
	if err != nil {
		handleStoreError(w, err, "delivery log", deliveryID)
		return
	}
	if entries == nil {
		entries = []*delivery.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// MarkRead records that the user opened an inbox item. Repeated calls keep
// the first read time.
// POST /api/v1/deliveries/read?delivery_id=
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	deliveryID, ok := requireQueryParam(w, r, "delivery_id")
	if !ok {
		return
	}

	ctx := r.Context()
	before, err := h.repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		handleStoreError(w, err, "delivery", deliveryID)
		return
	}
	now := h.now().UTC()
	rec, err := h.repo.MarkRead(ctx, deliveryID, now)
	if err != nil {
		handleStoreError(w, err, "delivery", deliveryID)
		return
	}
	if before.ReadAt == nil {
		entry := delivery.NewLogEntry(rec, delivery.EventMarkedRead, map[string]string{"channel": string(rec.Channel)}, now)
		if err := h.repo.AppendLog(ctx, entry); err != nil {
			handleStoreError(w, err, "delivery log", deliveryID)
			return
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetDigest summarizes a user's alerts over [since, until). until defaults
// to now and since to one day before until; both are RFC 3339.
// GET /api/v1/digest?user_id=&since=&until=
func (h *Handlers) GetDigest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireQueryParam(w, r, "user_id")
	if !ok {
		return
	}

	until, ok := parseTimeParam(w, r, "until", h.now().UTC())
	if !ok {
		return
	}
	since, ok := parseTimeParam(w, r, "since", until.Add(-DefaultDigestWindow))
	if !ok {
		return
	}
	if !since.Before(until) {
		http.Error(w, "since must be before until", http.StatusBadRequest)
		return
	}

	records, err := h.repo.ListDeliveries(r.Context(), store.DeliveryFilter{
		UserID: userID,
		Since:  since,
		Until:  until,
		Limit:  maxDigestRecords,
	})
	if err != nil {
		handleStoreError(w, err, "delivery", userID)
		return
	}
	writeJSON(w, http.StatusOK, delivery.Summarize(userID, records, since, until))
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string, def time.Time) (time.Time, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		http.Error(w, name+" must be an RFC 3339 timestamp", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t.UTC(), true
}
