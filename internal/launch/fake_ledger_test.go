package launch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"token-launcher/internal/utils"
)

// revertError mimics the ledger client's error for a reverted transaction.
type revertError struct {
	hash common.Hash
	data []byte
}

func (e *revertError) Error() string                { return "execution reverted" }
func (e *revertError) RevertData() []byte           { return e.data }
func (e *revertError) TransactionHash() common.Hash { return e.hash }
func (e *revertError) Mined() bool                  { return e.hash != (common.Hash{}) }

// receiptTimeoutError is a transaction the node accepted but never confirmed
// before the caller gave up waiting.
type receiptTimeoutError struct {
	hash common.Hash
}

func (e *receiptTimeoutError) Error() string                { return "wait for receipt: context deadline exceeded" }
func (e *receiptTimeoutError) TransactionHash() common.Hash { return e.hash }
func (e *receiptTimeoutError) Mined() bool                  { return false }

// heldTransfer is an accepted transfer not yet applied to balances.
type heldTransfer struct {
	token, to common.Address
	amount    *big.Int
}

type allowanceKey struct {
	token, owner, spender common.Address
}

// fakeLedger is an in-memory ledger with just enough ERC20, factory and
// router behavior to drive the pipeline.
type fakeLedger struct {
	mu sync.Mutex

	signer    common.Address
	native    *big.Int
	gasPrice  *big.Int
	decimals  uint8
	chainTime time.Time
	nonce     int64
	nextAddr  int64

	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	pairs      map[[2]common.Address]common.Address
	records    []TokenRecord

	calls             []string
	createPairCalls   int
	addLiquidityCalls int
	transferCalls     int
	deployCalls       int

	deployErr     error
	transferErr   error
	holdTransfers bool
	held          []heldTransfer
	approveErr    error
	getPairErr    error
	onCreatePair  func(token0, token1 common.Address) error
	lastDeposit   LiquidityDeposit
	skipAllowance bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		signer:     common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
		native:     ether(100),
		gasPrice:   big.NewInt(1_000_000_000),
		decimals:   18,
		chainTime:  time.Unix(1_700_000_000, 0),
		nextAddr:   0x1000,
		balances:   map[common.Address]map[common.Address]*big.Int{},
		allowances: map[allowanceKey]*big.Int{},
		pairs:      map[[2]common.Address]common.Address{},
	}
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func (f *fakeLedger) txHash() common.Hash {
	f.nonce++
	return common.BigToHash(big.NewInt(f.nonce))
}

func (f *fakeLedger) newAddress() common.Address {
	f.nextAddr++
	return common.BigToAddress(big.NewInt(f.nextAddr))
}

func (f *fakeLedger) ok(hash common.Hash) TxResult {
	return TxResult{Success: true, TxHash: hash, BlockNumber: uint64(f.nonce), GasUsed: 21000}
}

func (f *fakeLedger) balance(token, owner common.Address) *big.Int {
	if b, ok := f.balances[token][owner]; ok {
		return b
	}
	return new(big.Int)
}

func (f *fakeLedger) setBalance(token, owner common.Address, v *big.Int) {
	if f.balances[token] == nil {
		f.balances[token] = map[common.Address]*big.Int{}
	}
	f.balances[token][owner] = v
}

func (f *fakeLedger) mint(supplyWhole *big.Int) common.Address {
	token := f.newAddress()
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(f.decimals)), nil)
	f.setBalance(token, f.signer, new(big.Int).Mul(supplyWhole, unit))
	return token
}

func (f *fakeLedger) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeLedger) Address() common.Address { return f.signer }

func (f *fakeLedger) NativeBalance(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.native), nil
}

func (f *fakeLedger) GasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeLedger) Deploy(_ context.Context, contractName string, _ TxOpts, args ...interface{}) (common.Address, TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("deploy")
	f.deployCalls++
	hash := f.txHash()
	if f.deployErr != nil {
		return common.Address{}, TxResult{TxHash: hash}, f.deployErr
	}
	if len(args) != 5 {
		return common.Address{}, TxResult{}, fmt.Errorf("%s: expected 5 constructor args, got %d", contractName, len(args))
	}
	supply, ok := args[2].(*big.Int)
	if !ok {
		return common.Address{}, TxResult{}, fmt.Errorf("supply arg is %T", args[2])
	}
	return f.mint(supply), f.ok(hash), nil
}

func (f *fakeLedger) DeployToken(_ context.Context, _ common.Address, spec TokenSpec, _ TxOpts) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("deployToken")
	f.deployCalls++
	hash := f.txHash()
	if f.deployErr != nil {
		return TxResult{TxHash: hash}, f.deployErr
	}
	token := f.mint(spec.WholeSupply())
	f.records = append(f.records, TokenRecord{
		TokenAddress: token,
		Name:         spec.Name,
		Symbol:       spec.Symbol,
		InitiatorID:  big.NewInt(spec.InitiatorID),
		ImageURL:     spec.MetadataURI,
		Creator:      spec.Creator,
	})
	return f.ok(hash), nil
}

func (f *fakeLedger) GetTokens(context.Context, common.Address) ([]TokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenRecord(nil), f.records...), nil
}

func (f *fakeLedger) Transfer(_ context.Context, token, to common.Address, amount *big.Int, opts TxOpts) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("transfer")
	f.transferCalls++
	hash := f.txHash()
	if f.transferErr != nil {
		return TxResult{}, f.transferErr
	}
	if opts.OnSubmitted != nil {
		opts.OnSubmitted(hash)
	}
	if f.holdTransfers {
		f.held = append(f.held, heldTransfer{token: token, to: to, amount: new(big.Int).Set(amount)})
		return TxResult{TxHash: hash}, &receiptTimeoutError{hash: hash}
	}
	from := f.balance(token, f.signer)
	if from.Cmp(amount) < 0 {
		return TxResult{TxHash: hash}, &revertError{hash: hash, data: utils.EncodeRevertReason("ERC20: transfer amount exceeds balance")}
	}
	f.setBalance(token, f.signer, new(big.Int).Sub(from, amount))
	f.setBalance(token, to, new(big.Int).Add(f.balance(token, to), amount))
	return f.ok(hash), nil
}

// confirmHeld mines every held transfer.
func (f *fakeLedger) confirmHeld() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.held {
		f.setBalance(h.token, f.signer, new(big.Int).Sub(f.balance(h.token, f.signer), h.amount))
		f.setBalance(h.token, h.to, new(big.Int).Add(f.balance(h.token, h.to), h.amount))
	}
	f.held = nil
	f.holdTransfers = false
}

func (f *fakeLedger) Approve(_ context.Context, token, spender common.Address, amount *big.Int, _ TxOpts) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("approve")
	hash := f.txHash()
	if f.approveErr != nil {
		return TxResult{TxHash: hash}, f.approveErr
	}
	if !f.skipAllowance {
		f.allowances[allowanceKey{token, f.signer, spender}] = new(big.Int).Set(amount)
	}
	return f.ok(hash), nil
}

func (f *fakeLedger) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance(token, owner)), nil
}

func (f *fakeLedger) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (f *fakeLedger) GetPair(_ context.Context, _ common.Address, tokenA, tokenB common.Address) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getPairErr != nil {
		return common.Address{}, f.getPairErr
	}
	t0, t1 := utils.SortAddresses(tokenA, tokenB)
	return f.pairs[[2]common.Address{t0, t1}], nil
}

func (f *fakeLedger) setPair(tokenA, tokenB, pair common.Address) {
	t0, t1 := utils.SortAddresses(tokenA, tokenB)
	f.pairs[[2]common.Address{t0, t1}] = pair
}

func (f *fakeLedger) CreatePair(_ context.Context, _ common.Address, tokenA, tokenB common.Address, _ TxOpts) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("createPair")
	f.createPairCalls++
	hash := f.txHash()
	t0, t1 := utils.SortAddresses(tokenA, tokenB)
	if f.onCreatePair != nil {
		if err := f.onCreatePair(t0, t1); err != nil {
			return TxResult{TxHash: hash}, err
		}
	}
	key := [2]common.Address{t0, t1}
	if _, exists := f.pairs[key]; exists {
		return TxResult{TxHash: hash}, &revertError{hash: hash, data: utils.EncodeRevertReason("UniswapV2: PAIR_EXISTS")}
	}
	f.pairs[key] = f.newAddress()
	return f.ok(hash), nil
}

func (f *fakeLedger) AddLiquidityETH(_ context.Context, router common.Address, d LiquidityDeposit, opts TxOpts) (LiquidityResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("addLiquidityETH")
	f.addLiquidityCalls++
	f.lastDeposit = d
	hash := f.txHash()
	revert := func(reason string) (LiquidityResult, error) {
		return LiquidityResult{TxResult: TxResult{TxHash: hash}}, &revertError{hash: hash, data: utils.EncodeRevertReason(reason)}
	}

	if !d.Deadline.After(f.chainTime) {
		return revert("UniswapV2Router: EXPIRED")
	}
	if opts.Value == nil || opts.Value.Cmp(d.ReserveAmount) != 0 {
		return revert("value does not match reserve amount")
	}
	key := allowanceKey{d.Token, f.signer, router}
	allowance := f.allowances[key]
	if allowance == nil || allowance.Cmp(d.TokenAmount) < 0 {
		return revert("TransferHelper: TRANSFER_FROM_FAILED")
	}
	if f.native.Cmp(opts.Value) < 0 {
		return revert("insufficient native balance")
	}
	if f.balance(d.Token, f.signer).Cmp(d.TokenAmount) < 0 {
		return revert("TransferHelper: TRANSFER_FROM_FAILED")
	}

	f.allowances[key] = new(big.Int).Sub(allowance, d.TokenAmount)
	f.setBalance(d.Token, f.signer, new(big.Int).Sub(f.balance(d.Token, f.signer), d.TokenAmount))
	f.setBalance(d.Token, d.Pair, new(big.Int).Add(f.balance(d.Token, d.Pair), d.TokenAmount))
	f.native = new(big.Int).Sub(f.native, opts.Value)

	shares := new(big.Int).Sqrt(new(big.Int).Mul(d.TokenAmount, d.ReserveAmount))
	shares.Sub(shares, big.NewInt(1000))
	f.setBalance(d.Pair, d.Recipient, shares)

	res := f.ok(hash)
	return LiquidityResult{
		TxResult:      res,
		AmountToken:   new(big.Int).Set(d.TokenAmount),
		AmountReserve: new(big.Int).Set(d.ReserveAmount),
		Liquidity:     shares,
	}, nil
}

// memoryRecorder captures recorder calls.
type memoryRecorder struct {
	mu        sync.Mutex
	started   []string
	submitted map[Step]common.Hash
	completed []StepOutcome
	failed    []*StepError
	summaries []Summary
	failOn    Step
}

func (r *memoryRecorder) RunStarted(_ context.Context, runID string, _ TokenSpec, _ BurnPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, runID)
	return nil
}

func (r *memoryRecorder) StepSubmitted(_ context.Context, _ string, step Step, txHash common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitted == nil {
		r.submitted = map[Step]common.Hash{}
	}
	r.submitted[step] = txHash
}

func (r *memoryRecorder) StepCompleted(_ context.Context, _ string, outcome StepOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if outcome.Step == r.failOn {
		return errors.New("store unavailable")
	}
	r.completed = append(r.completed, outcome)
	return nil
}

func (r *memoryRecorder) StepFailed(_ context.Context, _ string, stepErr *StepError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, stepErr)
}

func (r *memoryRecorder) RunCompleted(_ context.Context, _ string, summary Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
}

func (r *memoryRecorder) steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, 0, len(r.completed))
	for _, c := range r.completed {
		out = append(out, c.Step)
	}
	return out
}
