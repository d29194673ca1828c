package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"synergysphere/internal/domain"
)

// Authenticator es el subconjunto del cliente de API que necesita el proveedor.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, displayName string) (domain.Session, error)
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
}

type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// State es lo que ven los consumidores: el usuario actual y si sigue la carga inicial.
type State struct {
	User    *domain.User
	Loading bool
}

type Event struct {
	Type  EventType
	State State
}

type Listener func(Event)

// ErrNotStarted se devuelve cuando se usa el proveedor antes de Start.
var ErrNotStarted = errors.New("session provider not started")

const (
	defaultRefreshMargin = time.Minute
	defaultRetryDelay    = 5 * time.Second
)

// Options ajusta el comportamiento del proveedor.
type Options struct {
	AutoRefresh   bool
	RefreshMargin time.Duration
	RetryDelay    time.Duration
	Now           func() time.Time
}

// Provider mantiene la sesion autenticada del proceso y notifica sus cambios.
type Provider struct {
	auth   Authenticator
	store  Store
	logger *zap.Logger
	opts   Options

	mu      sync.RWMutex
	session *domain.Session
	loading bool
	started bool
	retryAt time.Time

	refreshMu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	wake      chan struct{}
}

func NewProvider(logger *zap.Logger, auth Authenticator, store Store, opts Options) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = defaultRefreshMargin
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		auth:      auth,
		store:     store,
		logger:    logger,
		opts:      opts,
		loading:   true,
		listeners: make(map[int]Listener),
		wake:      make(chan struct{}, 1),
	}
}

// Start recupera la sesion persistida, emite INITIAL_SESSION y arranca el refresco.
// Solo la primera llamada tiene efecto.
func (p *Provider) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		sess := p.restore(ctx)

		p.mu.Lock()
		p.session = sess
		p.loading = false
		p.started = true
		p.mu.Unlock()

		p.emit(EventInitialSession)

		if p.opts.AutoRefresh {
			loopCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			p.mu.Lock()
			p.cancel, p.done = cancel, done
			p.mu.Unlock()
			go p.run(loopCtx, done)
		}
	})
}

func (p *Provider) restore(ctx context.Context) *domain.Session {
	sess, err := p.store.Load()
	if err != nil {
		p.logger.Warn("load stored session failed", zap.Error(err))
		return nil
	}
	if sess == nil {
		return nil
	}
	if !sess.Expired(p.opts.Now()) {
		return sess
	}
	fresh, err := p.auth.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if domain.KindOf(err).Retryable() {
			// El refresh token sigue sirviendo; el loop reintenta al arrancar.
			p.logger.Warn("stored session refresh failed, keeping it", zap.Error(err))
			p.mu.Lock()
			p.retryAt = p.opts.Now().Add(p.opts.RetryDelay)
			p.mu.Unlock()
			return sess
		}
		p.logger.Info("stored session could not be refreshed", zap.Error(err))
		if clearErr := p.store.Clear(); clearErr != nil {
			p.logger.Warn("clear stored session failed", zap.Error(clearErr))
		}
		return nil
	}
	p.persist(fresh)
	return &fresh
}

// Subscribe registra un listener y devuelve la funcion que lo da de baja.
func (p *Provider) Subscribe(l Listener) func() {
	p.lmu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lmu.Lock()
			delete(p.listeners, id)
			p.lmu.Unlock()
		})
	}
}

func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *Provider) stateLocked() State {
	st := State{Loading: p.loading}
	if p.session != nil {
		u := p.session.User
		st.User = &u
	}
	return st
}

// User devuelve el usuario autenticado o nil.
func (p *Provider) User() *domain.User {
	return p.State().User
}

func (p *Provider) Loading() bool {
	return p.State().Loading
}

// SignUp crea la cuenta, deja la sesion iniciada y emite SIGNED_IN.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (domain.User, error) {
	sess, err := p.auth.SignUp(ctx, email, password, displayName)
	if err != nil {
		return domain.User{}, err
	}
	p.setSession(&sess)
	p.emit(EventSignedIn)
	return sess.User, nil
}

// SignIn autentica con email y contrasena y emite SIGNED_IN.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.User, error) {
	sess, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return domain.User{}, err
	}
	p.setSession(&sess)
	p.emit(EventSignedIn)
	return sess.User, nil
}

// SignOut revoca la sesion en el servidor y la descarta localmente.
// Sin sesion activa no hace nada.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.RLock()
	sess := p.session
	p.mu.RUnlock()
	if sess == nil {
		return nil
	}
	if err := p.auth.SignOut(ctx, sess.RefreshToken); err != nil {
		return err
	}
	p.setSession(nil)
	p.emit(EventSignedOut)
	return nil
}

// AccessToken devuelve un access token valido, refrescandolo si hace falta.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	started := p.started
	sess := p.session
	p.mu.RUnlock()
	if !started {
		return "", ErrNotStarted
	}
	if sess == nil {
		return "", domain.ErrUnauthorized
	}
	if !p.due(*sess) {
		return sess.AccessToken, nil
	}
	fresh, err := p.refresh(ctx, false)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// Close detiene el refresco en segundo plano y da de baja a todos los listeners.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.mu.RLock()
		cancel, done := p.cancel, p.done
		p.mu.RUnlock()
		if cancel != nil {
			cancel()
			<-done
		}
		p.lmu.Lock()
		p.listeners = make(map[int]Listener)
		p.lmu.Unlock()
	})
}

func (p *Provider) due(sess domain.Session) bool {
	if sess.ExpiresAt.IsZero() {
		return false
	}
	return !p.opts.Now().Before(sess.ExpiresAt.Add(-p.marginFor(sess)))
}

// marginFor nunca supera la mitad de la vida del token para no refrescar en bucle.
func (p *Provider) marginFor(sess domain.Session) time.Duration {
	margin := p.opts.RefreshMargin
	if sess.ExpiresIn > 0 {
		if half := time.Duration(sess.ExpiresIn) * time.Second / 2; half < margin {
			margin = half
		}
	}
	return margin
}

// refresh serializa la rotacion: el refresh token es de un solo uso.
// Los listeners se notifican ya liberado el lock.
func (p *Provider) refresh(ctx context.Context, background bool) (domain.Session, error) {
	sess, ev, err := p.rotate(ctx, background)
	if ev != "" {
		p.emit(ev)
	}
	return sess, err
}

func (p *Provider) rotate(ctx context.Context, background bool) (domain.Session, EventType, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.RLock()
	sess := p.session
	p.mu.RUnlock()
	if sess == nil {
		return domain.Session{}, "", domain.ErrUnauthorized
	}
	if !p.due(*sess) {
		return *sess, "", nil
	}

	fresh, err := p.auth.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if domain.KindOf(err).Retryable() {
			p.mu.Lock()
			replaced := !p.isCurrentLocked(sess)
			if !replaced {
				p.retryAt = p.opts.Now().Add(p.opts.RetryDelay)
			}
			p.mu.Unlock()
			if replaced {
				return p.current()
			}
			p.logger.Warn("session refresh failed, will retry", zap.Bool("background", background), zap.Error(err))
			if !sess.Expired(p.opts.Now()) {
				return *sess, "", nil
			}
			return domain.Session{}, "", err
		}
		if !p.replaceSession(sess, nil) {
			return p.current()
		}
		p.logger.Info("session refresh rejected, signing out", zap.Error(err))
		return domain.Session{}, EventSignedOut, domain.ErrUnauthorized
	}
	if !p.replaceSession(sess, &fresh) {
		// Sign-out o sign-in durante el refresco: el par nuevo queda huerfano.
		p.logger.Debug("discarding refresh of replaced session")
		if err := p.auth.SignOut(ctx, fresh.RefreshToken); err != nil {
			p.logger.Warn("revoke discarded refresh token failed", zap.Error(err))
		}
		return p.current()
	}
	return fresh, EventTokenRefreshed, nil
}

// current devuelve la sesion vigente sin emitir eventos.
func (p *Provider) current() (domain.Session, EventType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return domain.Session{}, "", domain.ErrUnauthorized
	}
	return *p.session, "", nil
}

func (p *Provider) isCurrentLocked(sess *domain.Session) bool {
	return p.session != nil && p.session.RefreshToken == sess.RefreshToken
}

func (p *Provider) setSession(sess *domain.Session) {
	p.mu.Lock()
	p.applyLocked(sess)
	p.mu.Unlock()
	p.wakeLoop()
}

// replaceSession aplica next solo si prev sigue siendo la sesion vigente.
func (p *Provider) replaceSession(prev, next *domain.Session) bool {
	p.mu.Lock()
	if !p.isCurrentLocked(prev) {
		p.mu.Unlock()
		return false
	}
	p.applyLocked(next)
	p.mu.Unlock()
	p.wakeLoop()
	return true
}

// applyLocked persiste bajo p.mu para que el store siga el orden de los cambios.
func (p *Provider) applyLocked(sess *domain.Session) {
	p.session = sess
	p.retryAt = time.Time{}
	if sess == nil {
		if err := p.store.Clear(); err != nil {
			p.logger.Warn("clear stored session failed", zap.Error(err))
		}
		return
	}
	p.persist(*sess)
}

func (p *Provider) wakeLoop() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Provider) persist(sess domain.Session) {
	if err := p.store.Save(sess); err != nil {
		p.logger.Warn("persist session failed", zap.Error(err))
	}
}

// emit entrega el evento a los listeners en el goroutine que produjo el cambio.
func (p *Provider) emit(t EventType) {
	ev := Event{Type: t, State: p.State()}
	p.lmu.Lock()
	ls := make([]Listener, 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if l, ok := p.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	p.lmu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

// nextRefresh devuelve cuanto esperar hasta el proximo refresco; ok es false sin sesion.
func (p *Provider) nextRefresh() (time.Duration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil || p.session.ExpiresAt.IsZero() {
		return 0, false
	}
	at := p.session.ExpiresAt.Add(-p.marginFor(*p.session))
	if p.retryAt.After(at) {
		at = p.retryAt
	}
	d := at.Sub(p.opts.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (p *Provider) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if d, ok := p.nextRefresh(); ok {
			timer.Reset(d)
		}
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
			if _, err := p.refresh(ctx, true); err != nil && ctx.Err() == nil {
				p.logger.Debug("background refresh ended without session", zap.Error(err))
			}
		}
	}
}
