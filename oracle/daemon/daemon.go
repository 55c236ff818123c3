package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GPTx-global/rofl-oracle/oracle/api"
	"github.com/GPTx-global/rofl-oracle/oracle/config"
	"github.com/GPTx-global/rofl-oracle/oracle/contract"
	"github.com/GPTx-global/rofl-oracle/oracle/health"
	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/queue"
	"github.com/GPTx-global/rofl-oracle/oracle/retry"
	"github.com/GPTx-global/rofl-oracle/oracle/scheduler"
	"github.com/GPTx-global/rofl-oracle/oracle/signer"
	"github.com/GPTx-global/rofl-oracle/oracle/telemetry"
)

const shutdownTimeout = 10 * time.Second

type Daemon struct {
	store     *queue.Store
	signer    *signer.Client
	contract  *contract.Contract
	scheduler *scheduler.Scheduler
	checker   *health.Checker
	metrics   *telemetry.Metrics
	server    *http.Server

	addr     string
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopOnce sync.Once
}

// New builds every component from the loaded configuration.
func New(ctx context.Context) (*Daemon, error) {
	d := new(Daemon)
	d.ctx, d.cancel = context.WithCancel(ctx)

	metrics, err := telemetry.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	d.metrics = metrics

	d.store, err = queue.NewStore(
		queue.WithCapacity(config.QueueCapacity()),
		queue.WithLengthObserver(func(pending int) {
			telemetry.SetGauge(float32(pending), telemetry.MetricQueue, telemetry.MetricPending)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create observation queue: %w", err)
	}

	d.signer = signer.New(config.SignerSocket(), config.GasLimit(), config.SignerTimeout())
	d.contract = contract.New(config.ContractAddress(), d.signer)

	d.scheduler, err = scheduler.New(d.store, d.contract, config.SchedulerInterval(), retry.Policy{
		BaseDelay: config.SchedulerInterval(),
		MaxDelay:  config.BackoffMax(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	d.checker = health.NewChecker(config.HealthInterval(), config.SignerTimeout())
	d.checker.AddCheck(health.NewFuncCheck("signer", d.signer.Ping))
	d.checker.AddCheck(health.NewFuncCheck("queue", func(context.Context) error {
		if pending := d.store.Len(); pending >= d.store.Capacity() {
			return fmt.Errorf("pending queue is full (%d)", pending)
		}
		return nil
	}))

	router := api.NewRouter(d.store, d.contract, d.checker, d.metrics.Handler())
	d.server = api.NewServer(config.ListenAddress(), router)

	return d, nil
}

// Start opens the listener and launches the scheduler, health checker and
// HTTP server. It returns once the listener is bound.
func (d *Daemon) Start() error {
	listener, err := net.Listen("tcp", d.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.server.Addr, err)
	}
	d.addr = listener.Addr().String()

	group, ctx := errgroup.WithContext(d.ctx)
	d.group = group

	d.scheduler.Start(ctx)

	group.Go(func() error {
		d.checker.Start(ctx)
		return nil
	})

	group.Go(func() error {
		log.Infof("oracled listening on %s, contract %s, signer %s",
			d.addr, d.contract.Address().Hex(), d.signer.Socket())
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	})

	return nil
}

// Wait blocks until Stop is called, the parent context is cancelled or a
// component fails. The in-flight tick, if any, finishes before it returns.
// Pending observations are discarded.
func (d *Daemon) Wait() error {
	if d.group == nil {
		return nil
	}

	err := d.group.Wait()
	d.scheduler.Stop()

	d.stopOnce.Do(func() {
		if pending := d.store.Len(); pending > 0 {
			log.Warnf("discarding %d pending observations", pending)
		}
		log.Info("oracled stopped")
	})

	return err
}

// Stop cancels every component and waits for them to exit.
func (d *Daemon) Stop() error {
	d.cancel()
	return d.Wait()
}

// Addr is the bound listen address, valid after Start.
func (d *Daemon) Addr() string {
	return d.addr
}

func (d *Daemon) Store() *queue.Store {
	return d.store
}
