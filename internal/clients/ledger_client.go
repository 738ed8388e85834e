package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/contracts"
	"token-launcher/internal/launch"
	"token-launcher/internal/metrics"
	"token-launcher/internal/utils"
)

// EthBackend is the part of ethclient.Client the ledger client uses.
type EthBackend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LedgerOptions tunes transaction construction.
type LedgerOptions struct {
	// ChainID is used for EIP-155 signing; 0 asks the node.
	ChainID int64
	// GasPrice is a fixed price in wei, or "" / "auto" for SuggestGasPrice * GasPriceMultiplier / 100.
	GasPrice           string
	GasPriceMultiplier int64
	// EstimateMultiplier scales eth_estimateGas when a step has no configured limit.
	EstimateMultiplier uint64
	// ReceiptTimeout bounds the wait for a receipt; 0 waits until ctx is done.
	ReceiptTimeout     time.Duration
	ArtifactsDir       string
}

func (o *LedgerOptions) setDefaults() {
	if o.GasPriceMultiplier <= 0 {
		o.GasPriceMultiplier = 120
	}
	if o.EstimateMultiplier == 0 {
		o.EstimateMultiplier = 2
	}
	if o.ArtifactsDir == "" {
		o.ArtifactsDir = "artifacts"
	}
}

// TxError is a ledger rejection. TxHash is zero when the transaction was
// refused before submission (estimate or send failure). Included is set for a
// status-0 receipt.
type TxError struct {
	Method   string
	TxHash   common.Hash
	Included bool
	Revert   []byte
	Err      error
}

func (e *TxError) Error() string {
	msg := e.Method
	if e.TxHash != (common.Hash{}) {
		msg += " tx " + e.TxHash.Hex()
	}
	if reason := utils.DecodeRevertReason(e.Revert); reason != "" {
		return fmt.Sprintf("%s reverted: %s", msg, reason)
	}
	return fmt.Sprintf("%s failed: %v", msg, e.Err)
}

func (e *TxError) Unwrap() error                { return e.Err }
func (e *TxError) RevertData() []byte           { return e.Revert }
func (e *TxError) TransactionHash() common.Hash { return e.TxHash }
func (e *TxError) Mined() bool                  { return e.Included }

// LedgerClient signs and submits transactions from one local key and waits for
// their receipts. It implements launch.Ledger.
type LedgerClient struct {
	backend   EthBackend
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	opts      LedgerOptions
	artifacts *contracts.ArtifactStore
	log       logrus.FieldLogger

	// sends from one address are serialized so nonces are issued in order
	lockMutex sync.RWMutex
	sendLocks map[common.Address]*sync.Mutex
}

var _ launch.Ledger = (*LedgerClient)(nil)

// DialLedger connects to rpcURL and builds a client for the hex private key.
func DialLedger(ctx context.Context, rpcURL, privateKeyHex string, opts LedgerOptions, logger logrus.FieldLogger) (*LedgerClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}
	return NewLedgerClient(ctx, client, key, opts, logger)
}

// NewLedgerClient builds a client over an existing backend.
func NewLedgerClient(ctx context.Context, backend EthBackend, key *ecdsa.PrivateKey, opts LedgerOptions, logger logrus.FieldLogger) (*LedgerClient, error) {
	opts.setDefaults()

	chainID := big.NewInt(opts.ChainID)
	if opts.ChainID == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		chainID = id
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	c := &LedgerClient{
		backend:   backend,
		key:       key,
		from:      from,
		chainID:   chainID,
		opts:      opts,
		artifacts: contracts.NewArtifactStore(opts.ArtifactsDir),
		log:       logger.WithFields(logrus.Fields{"component": "ledger_client", "signer": from.Hex()}),
		sendLocks: make(map[common.Address]*sync.Mutex),
	}
	c.log.WithField("chain_id", chainID.String()).Info("Ledger client ready")
	return c, nil
}

// ChainID returns the chain id used for signing.
func (c *LedgerClient) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Address returns the signer address.
func (c *LedgerClient) Address() common.Address { return c.from }

// NativeBalance returns the signer's native balance at the latest block.
func (c *LedgerClient) NativeBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return nil, err
	}
	whole, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), big.NewFloat(1e18)).Float64()
	metrics.SignerBalance.WithLabelValues(c.from.Hex()).Set(whole)
	return balance, nil
}

// Deploy creates contractName from its artifact with the given constructor args.
func (c *LedgerClient) Deploy(ctx context.Context, contractName string, opts launch.TxOpts, args ...interface{}) (common.Address, launch.TxResult, error) {
	artifact, err := c.artifacts.Load(contractName)
	if err != nil {
		return common.Address{}, launch.TxResult{}, err
	}
	data, err := artifact.DeployData(args...)
	if err != nil {
		return common.Address{}, launch.TxResult{}, err
	}
	receipt, res, err := c.send(ctx, "deploy "+artifact.ContractName, nil, data, opts)
	if err != nil {
		return common.Address{}, res, err
	}
	return receipt.ContractAddress, res, nil
}

// Transfer calls token.transfer(to, amount).
func (c *LedgerClient) Transfer(ctx context.Context, token, to common.Address, amount *big.Int, opts launch.TxOpts) (launch.TxResult, error) {
	_, res, err := c.transact(ctx, contracts.ERC20, token, opts, "transfer", to, amount)
	return res, err
}

// Approve calls token.approve(spender, amount).
func (c *LedgerClient) Approve(ctx context.Context, token, spender common.Address, amount *big.Int, opts launch.TxOpts) (launch.TxResult, error) {
	_, res, err := c.transact(ctx, contracts.ERC20, token, opts, "approve", spender, amount)
	return res, err
}

// BalanceOf reads token.balanceOf(owner).
func (c *LedgerClient) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var out *big.Int
	if err := c.call(ctx, contracts.ERC20, token, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	return out, nil
}

// Allowance reads token.allowance(owner, spender).
func (c *LedgerClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	if err := c.call(ctx, contracts.ERC20, token, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return out, nil
}

// DeployToken calls factory.deployToken for spec.
func (c *LedgerClient) DeployToken(ctx context.Context, factory common.Address, spec launch.TokenSpec, opts launch.TxOpts) (launch.TxResult, error) {
	_, res, err := c.transact(ctx, contracts.LaunchFactory, factory, opts, "deployToken",
		spec.Name, spec.Symbol, big.NewInt(spec.InitiatorID), spec.MetadataURI, spec.Creator)
	return res, err
}

// GetTokens reads the factory's token registry.
func (c *LedgerClient) GetTokens(ctx context.Context, factory common.Address) ([]launch.TokenRecord, error) {
	data, err := c.callRaw(ctx, contracts.LaunchFactory, factory, "getTokens")
	if err != nil {
		return nil, err
	}
	tuples, err := contracts.UnpackTokenRecords(data)
	if err != nil {
		return nil, err
	}
	records := make([]launch.TokenRecord, 0, len(tuples))
	for _, t := range tuples {
		records = append(records, launch.TokenRecord{
			TokenAddress: t.TokenAddress,
			Name:         t.Name,
			Symbol:       t.Symbol,
			InitiatorID:  t.InitiatorFid,
			ImageURL:     t.ImageUrl,
			Creator:      t.Creator,
		})
	}
	return records, nil
}

// GetPair reads factory.getPair(tokenA, tokenB).
func (c *LedgerClient) GetPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {
	var out common.Address
	if err := c.call(ctx, contracts.AMMFactory, factory, &out, "getPair", tokenA, tokenB); err != nil {
		return common.Address{}, err
	}
	return out, nil
}

// CreatePair calls factory.createPair(tokenA, tokenB).
func (c *LedgerClient) CreatePair(ctx context.Context, factory, tokenA, tokenB common.Address, opts launch.TxOpts) (launch.TxResult, error) {
	_, res, err := c.transact(ctx, contracts.AMMFactory, factory, opts, "createPair", tokenA, tokenB)
	return res, err
}

// AddLiquidityETH calls router.addLiquidityETH and reads what the pair minted
// from the receipt logs.
func (c *LedgerClient) AddLiquidityETH(ctx context.Context, router common.Address, d launch.LiquidityDeposit, opts launch.TxOpts) (launch.LiquidityResult, error) {
	receipt, res, err := c.transact(ctx, contracts.Router, router, opts, "addLiquidityETH",
		d.Token, d.TokenAmount, d.MinTokenAmount, d.MinReserve, d.Recipient, big.NewInt(d.Deadline.Unix()))
	out := launch.LiquidityResult{TxResult: res}
	if err != nil {
		return out, err
	}

	decoded, err := contracts.DecodeLiquidityLogs(receipt.Logs, d.Pair, d.Recipient)
	if err != nil {
		c.log.WithError(err).WithField("tx_hash", res.TxHash.Hex()).Warn("Could not decode liquidity logs")
		return out, nil
	}
	var token0 common.Address
	if err := c.call(ctx, contracts.Pair, d.Pair, &token0, "token0"); err != nil {
		c.log.WithError(err).WithField("pair", d.Pair.Hex()).Warn("Could not read pair token0")
		out.Liquidity = decoded.Liquidity
		return out, nil
	}
	out.AmountToken, out.AmountReserve = decoded.Split(token0, d.Token)
	out.Liquidity = decoded.Liquidity
	return out, nil
}

func (c *LedgerClient) transact(ctx context.Context, parsed abi.ABI, to common.Address, opts launch.TxOpts, method string, args ...interface{}) (*types.Receipt, launch.TxResult, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, launch.TxResult{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return c.send(ctx, method, &to, data, opts)
}

func (c *LedgerClient) call(ctx context.Context, parsed abi.ABI, to common.Address, out interface{}, method string, args ...interface{}) error {
	data, err := c.callRaw(ctx, parsed, to, method, args...)
	if err != nil {
		return err
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return fmt.Errorf("%s returned no values", method)
	}
	return parsed.Methods[method].Outputs.Copy(out, values)
}

func (c *LedgerClient) callRaw(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]byte, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	data, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: input}, nil)
	if err != nil {
		return nil, &TxError{Method: method, Revert: utils.RevertDataFromError(err), Err: err}
	}
	return data, nil
}

// send signs a legacy EIP-155 transaction, submits it and blocks until the
// receipt arrives. A status-0 receipt is replayed with eth_call to recover the
// revert payload.
func (c *LedgerClient) send(ctx context.Context, method string, to *common.Address, data []byte, opts launch.TxOpts) (*types.Receipt, launch.TxResult, error) {
	start := time.Now()
	lock := c.getOrCreateLock(c.from)
	lock.Lock()
	defer lock.Unlock()

	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}
	msg := ethereum.CallMsg{From: c.from, To: to, Value: value, Data: data}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		estimated, err := c.backend.EstimateGas(ctx, msg)
		if err != nil {
			metrics.LedgerTransactions.WithLabelValues(method, "rejected").Inc()
			return nil, launch.TxResult{}, &TxError{Method: method, Revert: utils.RevertDataFromError(err), Err: fmt.Errorf("estimate gas: %w", err)}
		}
		gasLimit = estimated * c.opts.EstimateMultiplier
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, launch.TxResult{}, &TxError{Method: method, Err: err}
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, launch.TxResult{}, &TxError{Method: method, Err: fmt.Errorf("failed to get nonce: %w", err)}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return nil, launch.TxResult{}, &TxError{Method: method, Err: fmt.Errorf("failed to sign: %w", err)}
	}

	fields := logrus.Fields{
		"method":    method,
		"tx_hash":   signed.Hash().Hex(),
		"nonce":     nonce,
		"gas_limit": gasLimit,
		"gas_price": gasPrice.String(),
		"value":     value.String(),
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		metrics.LedgerTransactions.WithLabelValues(method, "rejected").Inc()
		return nil, launch.TxResult{}, &TxError{Method: method, Revert: utils.RevertDataFromError(err), Err: fmt.Errorf("send: %w", err)}
	}
	c.log.WithFields(fields).Info("Transaction submitted")
	if opts.OnSubmitted != nil {
		opts.OnSubmitted(signed.Hash())
	}

	var (
		waitCtx context.Context
		cancel  context.CancelFunc
	)
	if c.opts.ReceiptTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, c.opts.ReceiptTimeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(method, "timeout").Inc()
		return nil, launch.TxResult{TxHash: signed.Hash()}, &TxError{Method: method, TxHash: signed.Hash(), Err: fmt.Errorf("wait for receipt: %w", err)}
	}
	metrics.LedgerConfirmSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())

	res := launch.TxResult{
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		TxHash:      signed.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if !res.Success {
		metrics.LedgerTransactions.WithLabelValues(method, "reverted").Inc()
		revert := c.replay(ctx, msg, gasLimit, receipt.BlockNumber)
		res.RevertReason = utils.DecodeRevertReason(revert)
		c.log.WithFields(fields).WithField("reason", res.RevertReason).Error("Transaction reverted")
		return receipt, res, &TxError{Method: method, TxHash: signed.Hash(), Included: true, Revert: revert, Err: errors.New("status 0")}
	}

	metrics.LedgerTransactions.WithLabelValues(method, "success").Inc()
	c.log.WithFields(fields).WithFields(logrus.Fields{
		"block":    res.BlockNumber,
		"gas_used": res.GasUsed,
	}).Info("Transaction confirmed")
	return receipt, res, nil
}

// replay re-executes a failed transaction at its block to get the revert data.
func (c *LedgerClient) replay(ctx context.Context, msg ethereum.CallMsg, gas uint64, block *big.Int) []byte {
	msg.Gas = gas
	_, err := c.backend.CallContract(ctx, msg, block)
	if err == nil {
		return nil
	}
	return utils.RevertDataFromError(err)
}

// GasPrice returns the price the client signs legacy transactions with.
func (c *LedgerClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.gasPrice(ctx)
}

func (c *LedgerClient) gasPrice(ctx context.Context) (*big.Int, error) {
	if c.opts.GasPrice != "" && c.opts.GasPrice != "auto" {
		price, ok := new(big.Int).SetString(c.opts.GasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid gas price %q", c.opts.GasPrice)
		}
		return price, nil
	}
	suggested, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		c.log.WithError(err).Warn("SuggestGasPrice failed, using 5 gwei")
		return big.NewInt(5_000_000_000), nil
	}
	price := new(big.Int).Mul(suggested, big.NewInt(c.opts.GasPriceMultiplier))
	return price.Div(price, big.NewInt(100)), nil
}

func (c *LedgerClient) getOrCreateLock(address common.Address) *sync.Mutex {
	c.lockMutex.RLock()
	lock, exists := c.sendLocks[address]
	c.lockMutex.RUnlock()
	if exists {
		return lock
	}

	c.lockMutex.Lock()
	defer c.lockMutex.Unlock()
	if lock, exists := c.sendLocks[address]; exists {
		return lock
	}
	lock = &sync.Mutex{}
	c.sendLocks[address] = lock
	return lock
}
