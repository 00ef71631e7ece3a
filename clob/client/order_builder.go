package client

import (
	"context"
	"fmt"
	"math/big"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/betbot/clobkit/clob/signing"
	"github.com/betbot/clobkit/clob/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MarketDataSource 订单构建需要的市场参数
type MarketDataSource interface {
	GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error)
	GetFeeRateBps(ctx context.Context, tokenID string) (int, error)
}

// NegRiskSource 可选：未指定 NegRisk 选项时用来判断市场类型
type NegRiskSource interface {
	GetNegRisk(ctx context.Context, tokenID string) (bool, error)
}

// NonceSource 订单 nonce 来源；nonce 的唯一性由实现方保证
type NonceSource interface {
	GetNonce(ctx context.Context) (uint64, error)
}

// StaticNonce 固定 nonce
type StaticNonce uint64

func (n StaticNonce) GetNonce(context.Context) (uint64, error) { return uint64(n), nil }

// maxSalt salt 取值上限 2^53，保证 JSON number 在任何解析器里都是精确整数
const maxSalt = int64(1) << 53

// DefaultSalt salt 只用于区分同参数订单，不需要密码学随机性
func DefaultSalt() int64 {
	return rand.Int64N(maxSalt)
}

var tokenIDPattern = regexp.MustCompile(`^[0-9]+$`)

// OrderBuilderConfig 订单构建器配置
type OrderBuilderConfig struct {
	ChainID       types.Chain
	SignatureType types.SignatureType
	// FunderAddress 资金地址（maker）；为空时使用签名者地址
	FunderAddress string
	// SignTimeout 签名超时，0 表示不限制
	SignTimeout time.Duration
	// SaltGenerator 为空时使用 DefaultSalt
	SaltGenerator func() int64
	Logger        *logrus.Entry
}

// OrderBuilder 订单构建器：读取市场参数、计算金额、组装并签名订单
type OrderBuilder struct {
	signer    signing.Signer
	market    MarketDataSource
	nonces    NonceSource
	contracts ContractConfig
	cfg       OrderBuilderConfig
	log       *logrus.Entry
}

// NewOrderBuilder 创建订单构建器；nonces 为 nil 时 nonce 为 0
func NewOrderBuilder(signer signing.Signer, market MarketDataSource, nonces NonceSource, cfg OrderBuilderConfig) *OrderBuilder {
	if cfg.SaltGenerator == nil {
		cfg.SaltGenerator = DefaultSalt
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OrderBuilder{
		signer:    signer,
		market:    market,
		nonces:    nonces,
		contracts: GetContractConfig(cfg.ChainID),
		cfg:       cfg,
		log:       log.WithField("component", "order_builder"),
	}
}

// marketParams 并发读取的结果
type marketParams struct {
	tickSize types.TickSize
	feeRate  int
	nonce    uint64
	negRisk  bool
}

// BuildOrder 构建并签名订单
//
// 任何一步失败都不会返回部分结果；签名器最多被调用一次。
func (ob *OrderBuilder) BuildOrder(ctx context.Context, userOrder *types.UserOrder, options *types.CreateOrderOptions) (*types.SignedOrder, error) {
	if options == nil {
		options = &types.CreateOrderOptions{}
	}
	if ob.signer == nil {
		return nil, types.NewError(types.ErrAuthRequired, "BuildOrder", fmt.Errorf("签名器未配置"))
	}
	if userOrder == nil {
		return nil, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("订单为空"))
	}

	tokenID, taker, err := validateUserOrder(userOrder)
	if err != nil {
		return nil, err
	}
	signerAddr := ob.signer.Address()
	maker := signerAddr
	if ob.cfg.FunderAddress != "" {
		if !common.IsHexAddress(ob.cfg.FunderAddress) {
			return nil, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("无效的 funder 地址: %q", ob.cfg.FunderAddress))
		}
		maker = common.HexToAddress(ob.cfg.FunderAddress)
	}

	state := types.OrderStateDrafting
	log := ob.log.WithFields(logrus.Fields{
		"token_id": userOrder.TokenID,
		"side":     userOrder.Side,
	})

	params, err := ob.fetchMarketParams(ctx, userOrder, options)
	if err != nil {
		return nil, err
	}

	tickSize, err := resolveTickSize(options.TickSize, params.tickSize)
	if err != nil {
		return nil, err
	}
	if !signing.PriceValid(userOrder.Price, tickSize) {
		return nil, types.NewError(types.ErrInvalidAmount, "BuildOrder",
			fmt.Errorf("价格 %s 按 tick size %s 舍入后超出有效范围", userOrder.Price, tickSize))
	}
	feeRate, err := resolveFeeRate(userOrder.FeeRateBps, params.feeRate)
	if err != nil {
		return nil, err
	}

	amounts, err := signing.CalculateAmounts(userOrder.Side, userOrder.Price, userOrder.Size, tickSize)
	if err != nil {
		return nil, err
	}
	state = advance(state, types.OrderStateAmountsComputed)

	var expiration int64
	if userOrder.Expiration != nil {
		expiration = *userOrder.Expiration
	}

	data := &signing.OrderData{
		Salt:          ob.cfg.SaltGenerator(),
		Maker:         maker,
		Signer:        signerAddr,
		Taker:         taker,
		TokenID:       tokenID,
		MakerAmount:   amounts.Maker,
		TakerAmount:   amounts.Taker,
		Expiration:    big.NewInt(expiration),
		Nonce:         new(big.Int).SetUint64(params.nonce),
		FeeRateBps:    big.NewInt(int64(feeRate)),
		Side:          userOrder.Side,
		SignatureType: ob.cfg.SignatureType,
	}

	negRisk := params.negRisk
	if options.NegRisk != nil {
		negRisk = *options.NegRisk
	}
	typedData, err := signing.BuildOrderTypedData(ob.cfg.ChainID, ob.contracts.ExchangeFor(negRisk), data)
	if err != nil {
		return nil, err
	}

	signature, err := ob.sign(ctx, typedData)
	if err != nil {
		log.WithError(err).Warn("订单签名失败")
		return nil, err
	}
	state = advance(state, types.OrderStateSigned)

	log.WithFields(logrus.Fields{
		"tick_size":    tickSize,
		"maker_amount": data.MakerAmount.String(),
		"taker_amount": data.TakerAmount.String(),
		"neg_risk":     negRisk,
		"state":        state.String(),
	}).Debug("订单已签名")

	return &types.SignedOrder{Order: data.WireOrder(), Signature: signature}, nil
}

// validateUserOrder 本地校验，不访问网络
func validateUserOrder(o *types.UserOrder) (*big.Int, common.Address, error) {
	if !tokenIDPattern.MatchString(o.TokenID) {
		return nil, common.Address{}, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("无效的 tokenID: %q", o.TokenID))
	}
	tokenID, ok := new(big.Int).SetString(o.TokenID, 10)
	if !ok || tokenID.Sign() <= 0 {
		return nil, common.Address{}, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("无效的 tokenID: %q", o.TokenID))
	}
	if _, err := types.OrderSideToNumber(o.Side); err != nil {
		return nil, common.Address{}, err
	}
	if !o.Price.IsPositive() {
		return nil, common.Address{}, types.NewError(types.ErrInvalidAmount, "BuildOrder", fmt.Errorf("价格必须为正数: %s", o.Price))
	}
	if !o.Size.IsPositive() {
		return nil, common.Address{}, types.NewError(types.ErrInvalidAmount, "BuildOrder", fmt.Errorf("数量必须为正数: %s", o.Size))
	}
	if o.FeeRateBps != nil && *o.FeeRateBps < 0 {
		return nil, common.Address{}, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("手续费率不能为负数: %d", *o.FeeRateBps))
	}
	if o.Expiration != nil && *o.Expiration < 0 {
		return nil, common.Address{}, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("过期时间不能为负数: %d", *o.Expiration))
	}

	var taker common.Address
	if o.Taker != nil && *o.Taker != "" {
		if !common.IsHexAddress(*o.Taker) {
			return nil, common.Address{}, types.NewError(types.ErrInvalidOrder, "BuildOrder", fmt.Errorf("无效的 taker 地址: %q", *o.Taker))
		}
		taker = common.HexToAddress(*o.Taker)
	}
	return tokenID, taker, nil
}

// fetchMarketParams 并发读取 tick size、费率和 nonce，任何一个失败都会取消其余读取
func (ob *OrderBuilder) fetchMarketParams(ctx context.Context, o *types.UserOrder, options *types.CreateOrderOptions) (*marketParams, error) {
	if ob.market == nil {
		return nil, types.NewError(types.ErrMarketDataUnavailable, "BuildOrder", fmt.Errorf("市场数据源未配置"))
	}

	var p marketParams
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tick, err := ob.market.GetTickSize(gctx, o.TokenID)
		if err != nil {
			return types.NewError(types.ErrMarketDataUnavailable, "GetTickSize", err)
		}
		p.tickSize = tick
		return nil
	})
	g.Go(func() error {
		fee, err := ob.market.GetFeeRateBps(gctx, o.TokenID)
		if err != nil {
			return types.NewError(types.ErrMarketDataUnavailable, "GetFeeRateBps", err)
		}
		p.feeRate = fee
		return nil
	})
	g.Go(func() error {
		switch {
		case o.Nonce != nil:
			p.nonce = *o.Nonce
		case ob.nonces != nil:
			n, err := ob.nonces.GetNonce(gctx)
			if err != nil {
				return types.NewError(types.ErrMarketDataUnavailable, "GetNonce", err)
			}
			p.nonce = n
		}
		return nil
	})
	if src, ok := ob.market.(NegRiskSource); ok && options.NegRisk == nil {
		g.Go(func() error {
			negRisk, err := src.GetNegRisk(gctx, o.TokenID)
			if err != nil {
				return types.NewError(types.ErrMarketDataUnavailable, "GetNegRisk", err)
			}
			p.negRisk = negRisk
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &p, nil
}

// resolveTickSize 调用方指定的 tick size 不能比市场更细
func resolveTickSize(override *types.TickSize, market types.TickSize) (types.TickSize, error) {
	if override == nil || *override == "" {
		if _, err := signing.RoundConfigFor(market); err != nil {
			return "", types.NewError(types.ErrMarketDataUnavailable, "GetTickSize", err)
		}
		return market, nil
	}
	finer, err := signing.TickFinerThan(*override, market)
	if err != nil {
		return "", types.NewError(types.ErrInvalidOrder, "BuildOrder", err)
	}
	if finer {
		return "", types.NewError(types.ErrInvalidOrder, "BuildOrder",
			fmt.Errorf("tick size %s 比市场最小 tick size %s 更细", *override, market))
	}
	return *override, nil
}

// resolveFeeRate 市场费率为正时，调用方给出的费率必须一致；结果总是市场费率
func resolveFeeRate(user *int, market int) (int, error) {
	if market < 0 {
		return 0, types.NewError(types.ErrMarketDataUnavailable, "GetFeeRateBps", fmt.Errorf("无效的市场费率: %d", market))
	}
	if market > 0 && user != nil && *user != market {
		return 0, types.NewError(types.ErrInvalidOrder, "BuildOrder",
			fmt.Errorf("手续费率 %d 与市场费率 %d 不一致", *user, market))
	}
	return market, nil
}

// sign 调用签名器；超时、取消和拒绝统一归为 ErrSigningRejected
func (ob *OrderBuilder) sign(ctx context.Context, typedData apitypes.TypedData) (string, error) {
	if ob.cfg.SignTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ob.cfg.SignTimeout)
		defer cancel()
	}

	type result struct {
		sig string
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := ob.signer.SignTypedData(ctx, typedData)
		done <- result{sig, err}
	}()

	select {
	case <-ctx.Done():
		return "", types.NewError(types.ErrSigningRejected, "SignTypedData", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", types.NewError(types.ErrSigningRejected, "SignTypedData", r.err)
		}
		if r.sig == "" {
			return "", types.NewError(types.ErrSigningRejected, "SignTypedData", fmt.Errorf("签名为空"))
		}
		return r.sig, nil
	}
}

// advance 推进订单状态，非法转换说明构建流程有缺陷
func advance(from, to types.OrderState) types.OrderState {
	if !from.CanTransition(to) {
		panic(fmt.Sprintf("非法的订单状态转换: %s -> %s", from, to))
	}
	return to
}
