package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ftsi/facsite/internal/auth"
	"github.com/ftsi/facsite/internal/config"
	"github.com/ftsi/facsite/internal/enseignant"
	"github.com/ftsi/facsite/internal/horaire"
	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/notify"
	"github.com/ftsi/facsite/internal/photo"
	"github.com/ftsi/facsite/internal/security"
	"github.com/ftsi/facsite/internal/storage"
)

// In-memory repositories back the end-to-end tests.

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s == nil || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return s, nil
}

func (m *memSessionRepo) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) ListExpired(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(time.Now()) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	ids, _ := m.ListExpired(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.sessions, id)
	}
	return int64(len(ids)), nil
}

type memAdminRepo struct {
	mu    sync.Mutex
	count map[string]int
}

func newMemAdminRepo() *memAdminRepo {
	return &memAdminRepo{count: make(map[string]int)}
}

func (m *memAdminRepo) grant(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count[userID] = 1
}

func (m *memAdminRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count[userID], nil
}

type memEnseignantRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Enseignant
}

func newMemEnseignantRepo() *memEnseignantRepo {
	return &memEnseignantRepo{rows: make(map[string]*model.Enseignant)}
}

func (m *memEnseignantRepo) List(ctx context.Context) ([]*model.Enseignant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Enseignant, 0, len(m.rows))
	for _, e := range m.rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nom < out[j].Nom })
	return out, nil
}

func (m *memEnseignantRepo) FindByID(ctx context.Context, id string) (*model.Enseignant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memEnseignantRepo) Create(ctx context.Context, e *model.Enseignant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[e.ID] = e
	return nil
}

func (m *memEnseignantRepo) Update(ctx context.Context, e *model.Enseignant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[e.ID] = e
	return nil
}

func (m *memEnseignantRepo) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memPhotoRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Photo
}

func newMemPhotoRepo() *memPhotoRepo {
	return &memPhotoRepo{rows: make(map[string]*model.Photo)}
}

func (m *memPhotoRepo) List(ctx context.Context) ([]*model.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Photo, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateAjout.After(out[j].DateAjout) })
	return out, nil
}

func (m *memPhotoRepo) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memPhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return nil
}

func (m *memPhotoRepo) Update(ctx context.Context, p *model.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return nil
}

func (m *memPhotoRepo) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memHoraireRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Horaire
}

func newMemHoraireRepo() *memHoraireRepo {
	return &memHoraireRepo{rows: make(map[string]*model.Horaire)}
}

func (m *memHoraireRepo) List(ctx context.Context) ([]*model.Horaire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Horaire, 0, len(m.rows))
	for _, h := range m.rows {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatePublication.After(out[j].DatePublication) })
	return out, nil
}

func (m *memHoraireRepo) FindByID(ctx context.Context, id string) (*model.Horaire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memHoraireRepo) Create(ctx context.Context, h *model.Horaire) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[h.ID] = h
	return nil
}

func (m *memHoraireRepo) Update(ctx context.Context, h *model.Horaire) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[h.ID] = h
	return nil
}

func (m *memHoraireRepo) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// failingStore makes every upload fail.
type failingStore struct {
	storage.ObjectStore
}

func (f *failingStore) Upload(ctx context.Context, bucket, filename string, r io.Reader) (string, error) {
	return "", errors.New("disk full")
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	admins *memAdminRepo
	users  *memUserRepo
	photos *memPhotoRepo
}

func newTestEnv(t *testing.T, breakPhotoUploads bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cfg := &config.Config{
		SessionMaxAge:     3600,
		StorageDir:        t.TempDir(),
		UploadMaxBytes:    1 << 20,
		RateLimitGeneral:  1000,
		RateLimitLogin:    1000,
		CacheSize:         8,
		CacheTTL:          time.Minute,
		ServerPort:        "0",
		BaseURL:           "http://ftsi.test",
		CORSAllowedOrigin: "http://localhost:3000",
	}

	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	admins := newMemAdminRepo()
	photoRepo := newMemPhotoRepo()

	store, err := storage.NewDiskStore(cfg.StorageDir, cfg.BaseURL)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	var photoStore storage.ObjectStore = store
	if breakPhotoUploads {
		photoStore = &failingStore{ObjectStore: store}
	}

	authSvc := auth.NewService(users, sessions, admins, time.Duration(cfg.SessionMaxAge)*time.Second, logger)
	resolver := auth.NewResolver(authSvc, metrics.NewCollector(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		resolver.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	sanitizer := security.NewContentSanitizer()
	rec := &notify.Recorder{}

	router := NewRouter(RouterDeps{
		Config:            cfg,
		Logger:            logger,
		AuthService:       authSvc,
		Resolver:          resolver,
		EnseignantService: enseignant.NewService(newMemEnseignantRepo(), store, sanitizer, rec, cfg.CacheSize, cfg.CacheTTL, logger),
		PhotoService:      photo.NewService(photoRepo, photoStore, sanitizer, rec, cfg.CacheSize, cfg.CacheTTL, logger),
		HoraireService:    horaire.NewService(newMemHoraireRepo(), store, rec, cfg.CacheSize, cfg.CacheTTL, logger),
		Collector:         metrics.NewCollector(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{server: server, client: client, admins: admins, users: users, photos: photoRepo}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

func (e *testEnv) signUp(t *testing.T, email string) string {
	t.Helper()
	resp := e.postJSON(t, "/auth/signup", map[string]string{
		"email":    email,
		"password": "motdepasse",
		"nom":      "Testeur",
		"prenom":   "Un",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	var out struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("signup response unreadable: %v", err)
	}
	return out.User.ID
}

func (e *testEnv) signIn(t *testing.T, email string) {
	t.Helper()
	resp := e.postJSON(t, "/auth/signin", map[string]string{
		"email":    email,
		"password": "motdepasse",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin status = %d", resp.StatusCode)
	}
}

// waitResolved polls /auth/me until the role resolution settles.
func (e *testEnv) waitResolved(t *testing.T) authStateResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := e.get(t, "/auth/me")
		var state authStateResponse
		err := json.NewDecoder(resp.Body).Decode(&state)
		resp.Body.Close()
		if err == nil && !state.Loading {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("auth state never settled")
	return authStateResponse{}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("file write failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close failed: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) postMultipart(t *testing.T, path string, fields map[string]string, fileField, filename, content string) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, fields, fileField, filename, content)
	resp, err := e.client.Post(e.server.URL+path, contentType, body)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func TestAnonymousVisitor(t *testing.T) {
	env := newTestEnv(t, false)

	// Public lists answer without authentication.
	for _, path := range []string{"/api/enseignants", "/api/photos", "/api/horaires"} {
		resp := env.get(t, path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		var items []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
			t.Errorf("GET %s body is not a JSON array: %v", path, err)
		}
		resp.Body.Close()
	}

	// The admin page redirects to /auth.
	resp := env.get(t, "/admin")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("GET /admin status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/auth" {
		t.Errorf("Location = %q, want /auth", loc)
	}

	// The admin API answers 401.
	apiResp := env.postMultipart(t, "/admin/api/photos", map[string]string{"titre": "x"}, "image", "x.jpg", "img")
	defer apiResp.Body.Close()
	if apiResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("POST /admin/api/photos status = %d, want 401", apiResp.StatusCode)
	}
}

func TestNonAdminIsRedirected(t *testing.T) {
	env := newTestEnv(t, false)

	env.signUp(t, "etudiant@uac.cd")
	env.signIn(t, "etudiant@uac.cd")

	state := env.waitResolved(t)
	if !state.Authenticated || state.IsAdmin {
		t.Fatalf("state = %+v, want authenticated non-admin", state)
	}

	resp := env.get(t, "/admin")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("GET /admin status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/auth" {
		t.Errorf("Location = %q, want /auth", loc)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func TestAdminWorkflow(t *testing.T) {
	env := newTestEnv(t, false)

	userID := env.signUp(t, "admin@uac.cd")
	env.admins.grant(userID)
	env.signIn(t, "admin@uac.cd")

	state := env.waitResolved(t)
	if !state.IsAdmin {
		t.Fatalf("state = %+v, want admin", state)
	}

	// The admin page opens.
	resp := env.get(t, "/admin")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /admin status = %d, want 200", resp.StatusCode)
	}

	// Create two enseignants without photos, out of alphabetical order.
	for _, fields := range []map[string]string{
		{"nom": "Mukendi", "prenom": "Alain", "domaine": "Génie Informatique"},
		{"titre": "Dr.", "nom": "Makala", "prenom": "Grace", "domaine": "Génie Informatique"},
	} {
		resp = env.postMultipart(t, "/admin/api/enseignants", fields, "", "", "")
		if resp.StatusCode != http.StatusCreated {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			t.Fatalf("create enseignant status = %d, body %s", resp.StatusCode, body)
		}
		resp.Body.Close()
	}

	// Publish a photo with an image.
	resp = env.postMultipart(t, "/admin/api/photos", map[string]string{
		"titre": "Campus nord",
	}, "image", "campus nord.jpg", "jpegdata")
	var createdPhoto photoResponse
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("create photo status = %d, body %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(&createdPhoto); err != nil {
		t.Fatalf("photo response unreadable: %v", err)
	}
	resp.Body.Close()
	if createdPhoto.AjoutePar != userID {
		t.Errorf("AjoutePar = %q, want %q", createdPhoto.AjoutePar, userID)
	}

	// The stored object is publicly served.
	if name, ok := storage.ObjectNameFromURL(createdPhoto.URLImage, storage.BucketCampusPhotos); ok {
		fileResp := env.get(t, "/files/"+storage.BucketCampusPhotos+"/"+name)
		body, _ := io.ReadAll(fileResp.Body)
		fileResp.Body.Close()
		if fileResp.StatusCode != http.StatusOK || string(body) != "jpegdata" {
			t.Errorf("file serving status = %d body = %q", fileResp.StatusCode, body)
		}
	} else {
		t.Errorf("URLImage not in campus_photos bucket: %q", createdPhoto.URLImage)
	}

	// Both lists reflect the mutations.
	resp = env.get(t, "/api/enseignants")
	var enseignants []enseignantResponse
	if err := json.NewDecoder(resp.Body).Decode(&enseignants); err != nil {
		t.Fatalf("enseignants list unreadable: %v", err)
	}
	resp.Body.Close()
	if len(enseignants) != 2 || enseignants[0].Nom != "Makala" || enseignants[1].Nom != "Mukendi" {
		t.Errorf("enseignants not ordered by nom: %+v", enseignants)
	}

	// Sign out, then the gate closes again.
	signOutResp := env.postJSON(t, "/auth/signout", map[string]string{})
	signOutResp.Body.Close()
	if signOutResp.StatusCode != http.StatusNoContent {
		t.Fatalf("signout status = %d, want 204", signOutResp.StatusCode)
	}

	resp = env.get(t, "/admin")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("GET /admin after signout status = %d, want 303", resp.StatusCode)
	}
}

func TestPhotoUploadFailureLeavesNoRow(t *testing.T) {
	env := newTestEnv(t, true)

	userID := env.signUp(t, "admin@uac.cd")
	env.admins.grant(userID)
	env.signIn(t, "admin@uac.cd")
	env.waitResolved(t)

	resp := env.postMultipart(t, "/admin/api/photos", map[string]string{
		"titre": "Campus",
	}, "image", "campus.jpg", "jpegdata")
	defer resp.Body.Close()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("error body unreadable: %v", err)
	}
	if envelope.Error.Code != model.ErrCodeUploadFailed {
		t.Errorf("error code = %q, want UPLOAD_FAILED", envelope.Error.Code)
	}

	// No orphaned database row.
	listResp := env.get(t, "/api/photos")
	var photos []photoResponse
	if err := json.NewDecoder(listResp.Body).Decode(&photos); err != nil {
		t.Fatalf("photos list unreadable: %v", err)
	}
	listResp.Body.Close()
	if len(photos) != 0 {
		t.Errorf("photos = %+v, want empty after failed upload", photos)
	}
}

func TestDuplicateSignUpRejected(t *testing.T) {
	env := newTestEnv(t, false)

	env.signUp(t, "admin@uac.cd")

	resp := env.postJSON(t, "/auth/signup", map[string]string{
		"email":    "admin@uac.cd",
		"password": "motdepasse",
		"nom":      "Testeur",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.get(t, "/health")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("health body unreadable: %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("status = %q", out["status"])
	}
}

func TestSignInFailureRejected(t *testing.T) {
	env := newTestEnv(t, false)

	env.signUp(t, "admin@uac.cd")

	resp := env.postJSON(t, "/auth/signin", map[string]string{
		"email":    "admin@uac.cd",
		"password": "mauvais",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password signin status = %d, want 401", resp.StatusCode)
	}
}
