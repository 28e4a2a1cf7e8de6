package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"log"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/identity/sqlite"
	"github.com/MrEthical07/authcore/mail"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	seedPassword = "LoadTest123"
	seedCode     = "000000"
)

type userState struct {
	email string
	mu    sync.Mutex
	pair  authcore.TokenPair
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to register and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:", "store key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	repo, err := sqlite.Open(":memory:")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open identity store: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	engine, err := buildEngine(client, repo, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		states[i].email = fmt.Sprintf("user-%d@loadtest.local", i)
		pair, err := seedUser(ctx, engine, states[i].email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed %s: %v\n", states[i].email, err)
			os.Exit(1)
		}
		states[i].pair = pair
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(s *userState) error {
		s.mu.Lock()
		token := s.pair.AccessToken
		s.mu.Unlock()
		_, err := engine.ValidateAccess(ctx, token)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s *userState) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		next, err := engine.Refresh(ctx, s.pair.RefreshToken)
		if err != nil {
			return err
		}
		s.pair = next
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

func buildEngine(client redis.UniversalClient, repo *sqlite.Store, prefix string) (*authcore.Engine, error) {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Access.PrivateKey = randomKey()
	cfg.JWT.Refresh.PrivateKey = randomKey()
	// load generation measures token paths, not hashing
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.MaxLoginAttempts = 0
	cfg.Mail.Async = false
	cfg.Metrics.Enabled = true
	cfg.Store.KeyPrefix = prefix

	return authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityRepository(repo).
		WithMailSender(mail.LogSender{Logger: log.New(io.Discard, "", 0)}).
		WithCodeGenerator(func(int) (string, error) { return seedCode, nil }).
		Build()
}

func seedUser(ctx context.Context, engine *authcore.Engine, email string) (authcore.TokenPair, error) {
	if _, err := engine.Register(ctx, authcore.RegisterRequest{Email: email, Password: seedPassword}); err != nil {
		return authcore.TokenPair{}, err
	}
	if err := engine.VerifyEmail(ctx, email, seedCode); err != nil {
		return authcore.TokenPair{}, err
	}
	out, err := engine.Login(ctx, authcore.LoginRequest{Email: email, Password: seedPassword})
	if err != nil {
		return authcore.TokenPair{}, err
	}
	if err := out.Err(); err != nil {
		return authcore.TokenPair{}, err
	}
	return out.Tokens, nil
}

func randomKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return key
}

func runPhase(states []userState, ops, concurrency int, seed int64, op func(*userState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				t0 := time.Now()
				err := op(state)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
