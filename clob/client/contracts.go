package client

import (
	"github.com/betbot/clobkit/clob/types"
	"github.com/ethereum/go-ethereum/common"
)

// ContractConfig 合约配置
type ContractConfig struct {
	Exchange          common.Address // 标准交易所合约地址
	NegRiskAdapter    common.Address // 负风险适配器地址
	NegRiskExchange   common.Address // 负风险交易所合约地址
	Collateral        common.Address // 抵押品代币地址
	ConditionalTokens common.Address // 条件代币合约地址
}

// PolygonMainnetContracts Polygon 主网合约地址
var PolygonMainnetContracts = ContractConfig{
	Exchange:          common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"),
	NegRiskAdapter:    common.HexToAddress("0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"),
	NegRiskExchange:   common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a"),
	Collateral:        common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"), // USDC.e
	ConditionalTokens: common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"),
}

// AmoyTestnetContracts Amoy 测试网合约地址
var AmoyTestnetContracts = ContractConfig{
	Exchange:          common.HexToAddress("0xdFE02Eb6733538f8Ea35D585af8DE5958AD99E40"),
	NegRiskAdapter:    common.HexToAddress("0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"),
	NegRiskExchange:   common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a"),
	Collateral:        common.HexToAddress("0x9c4e1703476e875070ee25b56a58b008cfb8fa78"),
	ConditionalTokens: common.HexToAddress("0x69308FB512518e39F9b16112fA8d994F4e2Bf8bB"),
}

// GetContractConfig 根据链 ID 获取合约配置：137 为主网，其他链一律使用 Amoy
func GetContractConfig(chainID types.Chain) ContractConfig {
	if chainID == types.ChainPolygon {
		return PolygonMainnetContracts
	}
	return AmoyTestnetContracts
}

// ExchangeFor 订单签名使用的 verifyingContract
func (c ContractConfig) ExchangeFor(negRisk bool) common.Address {
	if negRisk {
		return c.NegRiskExchange
	}
	return c.Exchange
}
