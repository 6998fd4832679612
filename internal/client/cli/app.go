package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/client/client"
	"github.com/dmitrijs2005/linkvault/internal/client/config"
	"github.com/dmitrijs2005/linkvault/internal/client/services"
	"github.com/dmitrijs2005/linkvault/internal/client/session"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	api         client.Client
	reader      *bufio.Reader
	out         io.Writer

	mu       sync.Mutex
	userName string
	Mode     Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	store, err := session.Open(ctx, c.SessionDB)
	if err != nil {
		log.Printf("error initializing session database: %s", err.Error())
		return nil, err
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, c.HTTPBaseURL)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	as := services.NewAuthService(apiClient, store)

	return &App{
		config:      c,
		authService: as,
		api:         apiClient,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		Mode:        ModeOffline,
	}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName != ""
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

// status renders the prompt prefix, e.g. "online ann".
func (a *App) status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userName == "" {
		return string(a.Mode)
	}
	return fmt.Sprintf("%s %s", a.Mode, a.userName)
}

// Run restores a saved session, starts the connectivity watcher and blocks
// in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.authService.Close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if user, err := a.authService.Restore(ctx); err != nil {
		log.Printf("session restore failed: %v", err)
	} else if user != "" {
		a.setUser(user)
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(ctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
