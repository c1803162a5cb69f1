package e2e

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/authsig"
	"github.com/metergate/metergate/internal/balance"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/events"
	"github.com/metergate/metergate/internal/gateway"
	"github.com/metergate/metergate/internal/history"
	"github.com/metergate/metergate/internal/migration"
	"github.com/metergate/metergate/internal/observability"
	"github.com/metergate/metergate/internal/ratelimit"
	"github.com/metergate/metergate/internal/registry"
	"github.com/metergate/metergate/internal/revenue"
	"github.com/metergate/metergate/internal/scheduler"
	"github.com/metergate/metergate/internal/server"
	"github.com/metergate/metergate/internal/treasury"
	"github.com/metergate/metergate/internal/usage"
	"github.com/metergate/metergate/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fx.App
	db        *gorm.DB
	cfg       config.Config
	scheduler *scheduler.Scheduler
	baseURL   string
	httpSrv   *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func setDefaultEnv() {
	defaults := map[string]string{
		"DATABASE_TYPE":        "sqlite",
		"DATABASE_NAME":        "file:metergate_e2e?mode=memory&cache=shared",
		"AUTH_NONCE_TRACKING":  "true",
		"SETTLE_SWEEP_MIN_AGE": "0s",
		"RATE_LIMIT_ENABLED":   "false",
		"OTEL_ENABLED":         "false",
		"LOG_LEVEL":            "error",
	}
	for key, value := range defaults {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func startEnv() (*testEnv, error) {
	var (
		srv    *server.Server
		dbConn *gorm.DB
		cfg    config.Config
		engine *gin.Engine
		sched  *scheduler.Scheduler
	)

	app := fx.New(
		observability.Module,
		config.Module,
		db.Module,
		clock.Module,
		migration.Module,
		events.Module,
		treasury.Module,
		registry.Module,
		balance.Module,
		usage.Module,
		revenue.Module,
		authsig.Module,
		history.Module,
		ratelimit.Module,
		gateway.Module,
		fx.Provide(scheduler.New),
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn, &cfg, &engine, &sched),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(engine)

	return &testEnv{
		app:       app,
		db:        dbConn,
		cfg:       cfg,
		scheduler: sched,
		baseURL:   httpSrv.URL,
		httpSrv:   httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.app.Stop(ctx)
	}
}

func resetDatabase(t *testing.T, conn *gorm.DB) {
	t.Helper()
	tables := []string{
		"call_records",
		"consumed_nonces",
		"usage_records",
		"revenue_balances",
		"balances",
		"treasury_holdings",
		"api_configs",
	}
	for _, table := range tables {
		if err := conn.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}

func doJSON(t *testing.T, method, url string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func decodeJSON(t *testing.T, raw []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode response %s: %v", string(raw), err)
	}
}

// consumerKey holds a consumer keypair for signing call authorizations
// the way a client SDK would.
type consumerKey struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

func newConsumerKey(t *testing.T) *consumerKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &consumerKey{key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (k *consumerKey) sign(t *testing.T, apiID common.Hash, nonce, deadline int64) string {
	t.Helper()

	data := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"MeterAuthorization": []apitypes.Type{
				{Name: "consumer", Type: "address"},
				{Name: "apiId", Type: "bytes32"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "MeterAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              "MeterGate",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(env.cfg.ChainID),
			VerifyingContract: env.cfg.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"consumer": k.Address.Hex(),
			"apiId":    apiID.Hex(),
			"nonce":    math.NewHexOrDecimal256(nonce),
			"deadline": math.NewHexOrDecimal256(deadline),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		t.Fatalf("hash typed data: %v", err)
	}
	sig, err := crypto.Sign(hash, k.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "0x" + hex.EncodeToString(sig)
}
