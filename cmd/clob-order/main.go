package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/betbot/clobkit/clob/client"
	"github.com/betbot/clobkit/clob/signing"
	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/config"
	"github.com/betbot/clobkit/pkg/logger"
	"github.com/betbot/clobkit/pkg/secretstore"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type options struct {
	configPath string
	tokenID    string
	side       string
	price      string
	size       string
	orderType  string
	negRisk    string
	dryRun     bool
	cancelID   string
	listOpen   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", getenv("CLOB_CONFIG", ""), "配置文件路径（yaml/json，可选）")
	flag.StringVar(&opts.tokenID, "token", "", "条件代币 tokenID")
	flag.StringVar(&opts.side, "side", "BUY", "BUY 或 SELL")
	flag.StringVar(&opts.price, "price", "", "价格，例如 0.45")
	flag.StringVar(&opts.size, "size", "", "数量（份额）")
	flag.StringVar(&opts.orderType, "type", string(types.OrderTypeGTC), "订单类型 GTC/FOK/GTD/FAK")
	flag.StringVar(&opts.negRisk, "neg-risk", "", "true/false；为空时查询市场")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "只构建并签名，不提交")
	flag.StringVar(&opts.cancelID, "cancel", "", "撤销指定订单 ID")
	flag.BoolVar(&opts.listOpen, "open", false, "列出开放订单")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "未找到 .env 文件，使用环境变量")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logger.Errorf("执行失败: %v", err)
		var postErr *types.PostError
		if errors.As(err, &postErr) && postErr.Order != nil {
			// 已签名的订单原样输出，便于重新提交
			printJSON(postErr.Order)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	sigType := types.SignatureTypeEOA
	if cfg.Wallet.SignatureType != "" {
		if sigType, err = types.ParseSignatureType(cfg.Wallet.SignatureType); err != nil {
			return err
		}
	}

	var creds *types.ApiKeyCreds
	if cfg.HasAPICreds() {
		creds = &types.ApiKeyCreds{Key: cfg.API.Key, Secret: cfg.API.Secret, Passphrase: cfg.API.Passphrase}
	}

	c, err := client.NewClient(client.Config{
		Host:          cfg.Clob.Host,
		ChainID:       types.Chain(cfg.Clob.ChainID),
		Signer:        signer,
		Creds:         creds,
		SignatureType: sigType,
		FunderAddress: cfg.Wallet.FunderAddress,
		UseServerTime: cfg.Clob.UseServerTime,
		SignTimeout:   cfg.Clob.SignTimeout,
		HTTPTimeout:   cfg.Clob.Timeout,
		RetryCount:    3,
		Logger:        logger.WithField("app", "clob-order"),
	})
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"host":    c.GetHost(),
		"address": signer.Address().Hex(),
	}).Info("客户端已创建")

	if creds == nil && !opts.dryRun {
		if err := ensureCreds(ctx, c, cfg); err != nil {
			return err
		}
	}

	switch {
	case opts.cancelID != "":
		resp, err := c.CancelOrder(ctx, opts.cancelID)
		if err != nil {
			return err
		}
		printJSON(resp)
		return nil
	case opts.listOpen:
		orders, err := c.GetOpenOrders(ctx, nil)
		if err != nil {
			return err
		}
		printJSON(orders)
		return nil
	}

	userOrder, orderOpts, err := parseOrder(opts)
	if err != nil {
		return err
	}
	if opts.dryRun {
		order, err := c.CreateOrder(ctx, userOrder, orderOpts)
		if err != nil {
			return err
		}
		printJSON(order)
		return nil
	}

	result, err := c.CreateAndPostOrder(ctx, userOrder, orderOpts, types.OrderType(strings.ToUpper(opts.orderType)))
	if err != nil {
		return err
	}
	printJSON(result.Response)
	return nil
}

func newSigner(cfg *config.Config) (*signing.PrivateKeySigner, error) {
	if cfg.Wallet.PrivateKey != "" {
		return signing.PrivateKeySignerFromHex(cfg.Wallet.PrivateKey)
	}
	return signing.PrivateKeySignerFromMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.DerivationPath)
}

// ensureCreds 配置了本地存储时从存储读取 API 凭证，否则每次通过 L1 推导
func ensureCreds(ctx context.Context, c *client.Client, cfg *config.Config) error {
	if cfg.SecretStore.Path == "" {
		_, err := c.EnsureAPICreds(ctx, nil, 0)
		return err
	}

	key, err := secretstore.ParseKey(cfg.SecretStore.Key)
	if err != nil {
		return fmt.Errorf("SECRET_STORE_KEY 无效: %w", err)
	}
	store, err := secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretStore.Path, EncryptionKey: key})
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = c.EnsureAPICreds(ctx, store, 0)
	return err
}

func parseOrder(opts options) (*types.UserOrder, *types.CreateOrderOptions, error) {
	if opts.tokenID == "" {
		return nil, nil, fmt.Errorf("缺少 -token")
	}
	side, err := types.ParseSide(opts.side)
	if err != nil {
		return nil, nil, err
	}
	price, err := decimal.NewFromString(opts.price)
	if err != nil {
		return nil, nil, fmt.Errorf("无效的 -price %q: %w", opts.price, err)
	}
	size, err := decimal.NewFromString(opts.size)
	if err != nil {
		return nil, nil, fmt.Errorf("无效的 -size %q: %w", opts.size, err)
	}

	orderOpts := &types.CreateOrderOptions{}
	switch strings.ToLower(opts.negRisk) {
	case "":
	case "true":
		v := true
		orderOpts.NegRisk = &v
	case "false":
		v := false
		orderOpts.NegRisk = &v
	default:
		return nil, nil, fmt.Errorf("无效的 -neg-risk %q", opts.negRisk)
	}

	return &types.UserOrder{
		TokenID: opts.tokenID,
		Price:   price,
		Size:    size,
		Side:    side,
	}, orderOpts, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
