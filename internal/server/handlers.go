package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"qtermbloch/internal/challenge"
	"qtermbloch/internal/circuit"
	"qtermbloch/internal/config"
	"qtermbloch/internal/quantum"
	"qtermbloch/internal/view"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/x-msgpack"

	maxBodyBytes = 1 << 20
)

var errBadRequest = errors.New("bad request")

// Handler serves the circuit API.
type Handler struct {
	store   *Store
	engine  *quantum.Engine
	catalog *challenge.Catalog
	cfg     *config.Config
	log     zerolog.Logger
}

// NewHandler creates a new circuit API handler
func NewHandler(store *Store, engine *quantum.Engine, catalog *challenge.Catalog, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		engine:  engine,
		catalog: catalog,
		cfg:     cfg,
		log:     log.With().Str("handler", "circuits").Logger(),
	}
}

type metadata struct {
	Timestamp string `json:"timestamp" msgpack:"timestamp"`
}

type envelope struct {
	Data     any      `json:"data" msgpack:"data"`
	Metadata metadata `json:"metadata" msgpack:"metadata"`
}

type errorBody struct {
	Error string `json:"error" msgpack:"error"`
}

type gateSummary struct {
	Step        int       `json:"step" msgpack:"step"`
	Type        string    `json:"type" msgpack:"type"`
	Qubits      []int     `json:"qubits" msgpack:"qubits"`
	Params      []float64 `json:"params,omitempty" msgpack:"params,omitempty"`
	Dagger      bool      `json:"dagger,omitempty" msgpack:"dagger,omitempty"`
	Cbit        *int      `json:"cbit,omitempty" msgpack:"cbit,omitempty"`
	Explanation string    `json:"explanation,omitempty" msgpack:"explanation,omitempty"`
}

type circuitSummary struct {
	ID             string        `json:"id" msgpack:"id"`
	NumQubits      int           `json:"num_qubits" msgpack:"num_qubits"`
	NumCbits       int           `json:"num_cbits" msgpack:"num_cbits"`
	Classification string        `json:"classification" msgpack:"classification"`
	QASM           string        `json:"qasm" msgpack:"qasm"`
	Gates          []gateSummary `json:"gates" msgpack:"gates"`
}

type qubitSummary struct {
	Index      int     `json:"index" msgpack:"index"`
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z" msgpack:"z"`
	Renderable bool    `json:"renderable" msgpack:"renderable"`
	Warning    string  `json:"warning,omitempty" msgpack:"warning,omitempty"`
}

type viewResponse struct {
	Kind   view.Kind      `json:"kind" msgpack:"kind"`
	Counts quantum.Counts `json:"counts,omitempty" msgpack:"counts,omitempty"`
	Shots  int            `json:"shots,omitempty" msgpack:"shots,omitempty"`
	Qubits []qubitSummary `json:"qubits,omitempty" msgpack:"qubits,omitempty"`
}

type qasmRequest struct {
	QASM string `json:"qasm" msgpack:"qasm"`
}

type buildRequest struct {
	NumQubits int          `json:"num_qubits" msgpack:"num_qubits"`
	Ops       []circuit.Op `json:"ops" msgpack:"ops"`
	Measure   bool         `json:"measure" msgpack:"measure"`
}

type presetRequest struct {
	BitFlip      bool `json:"bit_flip" msgpack:"bit_flip"`
	Depolarizing bool `json:"depolarizing" msgpack:"depolarizing"`
	Readout      bool `json:"readout" msgpack:"readout"`
}

type noiseRequest struct {
	Shots  int                 `json:"shots" msgpack:"shots"`
	Preset *presetRequest      `json:"preset,omitempty" msgpack:"preset,omitempty"`
	Model  *quantum.NoiseModel `json:"model,omitempty" msgpack:"model,omitempty"`
}

type noiseResponse struct {
	Counts       quantum.Counts      `json:"counts" msgpack:"counts"`
	Shots        int                 `json:"shots" msgpack:"shots"`
	Path         string              `json:"path" msgpack:"path"`
	Noise        *quantum.NoiseModel `json:"noise" msgpack:"noise"`
	MeasureAdded bool                `json:"measure_added" msgpack:"measure_added"`
}

type challengeRequest struct {
	Challenge string `json:"challenge" msgpack:"challenge"`
	Shots     int    `json:"shots" msgpack:"shots"`
}

// HandleUploadQASM handles POST /api/circuits/qasm
func (h *Handler) HandleUploadQASM(w http.ResponseWriter, r *http.Request) {
	var req qasmRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := circuit.ParseQASM(req.QASM)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.storeCircuit(w, r, c)
}

// HandleBuild handles POST /api/circuits/build
func (h *Handler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := circuit.Build(req.NumQubits, req.Ops, req.Measure)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.storeCircuit(w, r, c)
}

func (h *Handler) storeCircuit(w http.ResponseWriter, r *http.Request, c *circuit.Circuit) {
	if c.NumQubits > h.cfg.MaxQubits {
		h.fail(w, r, fmt.Errorf("%w: %d qubits exceeds the limit of %d", circuit.ErrInvalidCircuit, c.NumQubits, h.cfg.MaxQubits))
		return
	}
	snap, err := circuit.NewSnapshot(c)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id := h.store.Put(snap)
	h.log.Info().
		Str("id", id).
		Int("qubits", snap.NumQubits()).
		Stringer("classification", snap.Classification()).
		Msg("Stored circuit")

	w.Header().Set("Location", "/api/circuits/"+id)
	h.respond(w, r, http.StatusCreated, summarize(id, snap))
}

// HandleGet handles GET /api/circuits/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.store.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, summarize(id, snap))
}

// HandleView handles GET /api/circuits/{id}/view
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	shots := h.cfg.DefaultShots
	if raw := r.URL.Query().Get("shots"); raw != "" {
		shots, err = strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: shots %q is not an integer", errBadRequest, raw))
			return
		}
	}
	if err := h.checkShots(shots); err != nil {
		h.fail(w, r, err)
		return
	}

	v, err := view.Visualize(r.Context(), h.engine, snap, view.Options{Shots: shots})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, renderView(v))
}

// HandleNoise handles POST /api/circuits/{id}/noise. Unmeasured circuits are
// measured on every qubit first; the stored circuit is left unchanged.
func (h *Handler) HandleNoise(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req noiseRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Shots == 0 {
		req.Shots = h.cfg.DefaultShots
	}
	if err := h.checkShots(req.Shots); err != nil {
		h.fail(w, r, err)
		return
	}

	model := req.Model
	if model == nil {
		p := req.Preset
		if p == nil {
			p = &presetRequest{BitFlip: true, Depolarizing: true, Readout: true}
		}
		model = quantum.PresetNoise(p.BitFlip, p.Depolarizing, p.Readout)
	}
	if err := model.Validate(); err != nil {
		h.fail(w, r, fmt.Errorf("%w: noise model: %w", errBadRequest, err))
		return
	}

	measureAdded := false
	if !snap.Measured() {
		c := snap.Circuit()
		c.MeasureAll()
		if snap, err = circuit.NewSnapshot(c); err != nil {
			h.fail(w, r, err)
			return
		}
		measureAdded = true
	}

	counts, path, err := h.engine.Sample(r.Context(), snap, req.Shots, model)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, noiseResponse{
		Counts:       counts,
		Shots:        req.Shots,
		Path:         path,
		Noise:        model,
		MeasureAdded: measureAdded,
	})
}

// HandleChallenge handles POST /api/circuits/{id}/challenge
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req challengeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ch, err := h.catalog.Get(req.Challenge)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Shots == 0 {
		req.Shots = h.cfg.DefaultShots
	}
	if err := h.checkShots(req.Shots); err != nil {
		h.fail(w, r, err)
		return
	}

	var counts quantum.Counts
	if snap.Measured() {
		counts, _, err = h.engine.Sample(r.Context(), snap, req.Shots, nil)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.respond(w, r, http.StatusOK, ch.Evaluate(counts, snap.Measured()))
}

// HandleListChallenges handles GET /api/challenges
func (h *Handler) HandleListChallenges(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.catalog.List())
}

// HandleDelete handles DELETE /api/circuits/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info().Str("id", id).Msg("Deleted circuit")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkShots(shots int) error {
	if shots <= 0 || shots > h.cfg.MaxShots {
		return fmt.Errorf("%w: shots must be in [1, %d], got %d", errBadRequest, h.cfg.MaxShots, shots)
	}
	return nil
}

func summarize(id string, snap *circuit.Snapshot) circuitSummary {
	gates := snap.Gates()
	out := circuitSummary{
		ID:             id,
		NumQubits:      snap.NumQubits(),
		NumCbits:       snap.NumCbits(),
		Classification: snap.Classification().String(),
		QASM:           snap.QASM(),
		Gates:          make([]gateSummary, len(gates)),
	}
	for i, g := range gates {
		gs := gateSummary{
			Step:        g.Step,
			Type:        g.Type,
			Qubits:      g.Qubits(),
			Params:      g.Params,
			Dagger:      g.IsDagger,
			Explanation: circuit.Explain(g),
		}
		if g.Cbit >= 0 {
			cbit := g.Cbit
			gs.Cbit = &cbit
		}
		out.Gates[i] = gs
	}
	return out
}

func renderView(v view.View) viewResponse {
	resp := viewResponse{Kind: v.Kind()}
	switch v := v.(type) {
	case *view.MeasurementView:
		resp.Counts = v.Counts
		resp.Shots = v.Shots
	case *view.BlochView:
		resp.Qubits = make([]qubitSummary, len(v.Qubits))
		for i, q := range v.Qubits {
			qs := qubitSummary{
				Index:      q.Index,
				X:          q.Vector.X,
				Y:          q.Vector.Y,
				Z:          q.Vector.Z,
				Renderable: q.Renderable,
			}
			if q.Warning != nil {
				qs.Warning = q.Warning.Error()
			}
			resp.Qubits[i] = qs
		}
	}
	return resp
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, circuit.ErrInvalidCircuit):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, challenge.ErrUnknownChallenge):
		return http.StatusNotFound
	case errors.Is(err, view.ErrInvalidState), errors.Is(err, quantum.ErrSimulation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := h.log.Warn()
	if status == http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("Request failed")

	h.write(w, r, status, errorBody{Error: err.Error()})
}

// decode reads a JSON or msgpack request body into v.
func (h *Handler) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", errBadRequest, err)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeMsgpack) {
		err = msgpack.Unmarshal(body, v)
	} else {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		return fmt.Errorf("%w: invalid request body: %w", errBadRequest, err)
	}
	return nil
}

// respond wraps data in the standard envelope.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.write(w, r, status, envelope{
		Data:     data,
		Metadata: metadata{Timestamp: time.Now().Format(time.RFC3339)},
	})
}

// write encodes body as msgpack when the client asks for it, JSON otherwise.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, body any) {
	if strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack) {
		data, err := msgpack.Marshal(body)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode msgpack response")
			http.Error(w, "encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		_, _ = w.Write(data)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
