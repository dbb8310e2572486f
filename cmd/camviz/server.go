package main

import (
	"context"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"goji.io"
	"goji.io/pat"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>camviz tuner</title></head>
<body style="font-family: monospace; background: #222; color: #ddd">
<h3>camviz pose tuner</h3>
<div>
  <label>focal <input type="range" id="focal" min="50" max="2000" value="500"></label>
  <label>height <input type="range" id="height" min="0" max="5" step="0.1" value="1.5"></label>
  <label>pitch <input type="range" id="pitch" min="-90" max="90" value="0"></label>
  <label>yaw <input type="range" id="yaw" min="-90" max="90" value="0"></label>
  <label>roll <input type="range" id="roll" min="-90" max="90" value="0"></label>
  <button onclick="fetch('/reset').then(refresh)">reset points</button>
</div>
<img id="view" src="/render.png" style="margin-top: 8px">
<script>
function params() {
  const ids = ['focal', 'height', 'pitch', 'yaw', 'roll'];
  return ids.map(id => id + '=' + document.getElementById(id).value).join('&');
}
function refresh() {
  document.getElementById('view').src = '/render.png?' + params() + '&t=' + Date.now();
}
for (const id of ['focal', 'height', 'pitch', 'yaw', 'roll']) {
  document.getElementById(id).addEventListener('input', refresh);
}
document.getElementById('view').addEventListener('click', ev => {
  const r = ev.target.getBoundingClientRect();
  fetch('/click?x=' + (ev.clientX - r.left) + '&y=' + (ev.clientY - r.top)).then(refresh);
});
</script>
</body>
</html>`

// tunerServer shares one appState across concurrent HTTP handlers; the
// camera setters are read-modify-write over multiple fields, so every
// access holds the mutex.
type tunerServer struct {
	mu    sync.Mutex
	state *appState
}

func (ts *tunerServer) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (ts *tunerServer) renderPNG(w http.ResponseWriter, r *http.Request) {
	ts.mu.Lock()
	cam := ts.state.cam
	if focal := queryFloat(r, "focal", 0); focal > 0 {
		cam.Fx = focal
		cam.Fy = focal
	}
	cam.SetCameraAngle(
		queryFloat(r, "pitch", 0),
		queryFloat(r, "yaw", 0),
		queryFloat(r, "roll", 0),
	)
	cam.SetCameraPos(0, -queryFloat(r, "height", 1.5), 0, true)
	img := ts.state.renderScene()
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		ts.state.logger.Errorw("error encoding frame", "error", err)
	}
}

func (ts *tunerServer) click(w http.ResponseWriter, r *http.Request) {
	x := queryFloat(r, "x", -1)
	y := queryFloat(r, "y", -1)
	if x < 0 || y < 0 {
		http.Error(w, "need x and y", http.StatusBadRequest)
		return
	}
	ts.mu.Lock()
	ts.state.selected = append(ts.state.selected, r2.Point{X: x, Y: y})
	ts.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (ts *tunerServer) reset(w http.ResponseWriter, _ *http.Request) {
	ts.mu.Lock()
	ts.state.selected = nil
	ts.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func newTunerMux(state *appState) *goji.Mux {
	ts := &tunerServer{state: state}
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/"), ts.index)
	mux.HandleFunc(pat.Get("/render.png"), ts.renderPNG)
	mux.HandleFunc(pat.Get("/click"), ts.click)
	mux.HandleFunc(pat.Get("/reset"), ts.reset)
	return mux
}

// serveTuner blocks serving the pose tuner until ctx is canceled.
func serveTuner(ctx context.Context, addr string, state *appState) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newTunerMux(state),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	state.logger.Infow("tuner listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
