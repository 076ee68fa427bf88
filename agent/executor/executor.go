// Package executor applies a resolved intent to the store and produces the
// reply. All arithmetic and stock checks happen here; the model only chooses
// the action.
package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/store"
)

type Stage string

const (
	StageResolved  Stage = "resolved"
	StageValidated Stage = "validated"
	StageApplied   Stage = "applied"
	StageConfirmed Stage = "confirmed"
	StageAnswered  Stage = "answered"
	StageFailed    Stage = "failed"
)

// Store is what the executor needs from the inventory and the ledger.
type Store interface {
	FindByNameLike(ctx context.Context, term string) (store.Product, error)
	RecordSale(ctx context.Context, productID int64, qty int) (store.SaleReceipt, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (store.Product, error)
	LowStock(ctx context.Context, limit int) ([]store.Product, error)
	RevenueOn(ctx context.Context, day time.Time) (store.Revenue, error)
	ProductRevenueOn(ctx context.Context, productID int64, day time.Time) (store.Revenue, int, error)
}

// Outcome is the result of one intent. Path lists every stage the intent
// went through, ending with Stage. Facts are the figures the response must
// keep when it is rephrased; Warning is re-appended verbatim when a rephrased
// response leaves it out.
type Outcome struct {
	Stage           Stage
	Path            []Stage
	Response        string
	Speech          string
	ActionPerformed bool
	Failure         contractx.FailureKind
	Facts           []string
	Warning         string
	Product         *store.Product
	Sale            *store.Sale
}

type Executor struct {
	store   Store
	phraser contractx.Phraser
	now     func() time.Time
	loc     *time.Location
}

type Option func(*Executor)

// WithPhraser enables the optional rephrasing round trip.
func WithPhraser(p contractx.Phraser) Option {
	return func(e *Executor) { e.phraser = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(e *Executor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func New(s Store, opts ...Option) *Executor {
	e := &Executor{store: s, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs intent. It never returns an error: every failure is reported
// through Outcome.Failure and a user-facing message.
func (e *Executor) Execute(ctx context.Context, intent contractx.ResolvedIntent, language string) Outcome {
	var out Outcome
	switch cmd := intent.Command.(type) {
	case contractx.RecordSale:
		out = e.recordSale(ctx, cmd)
	case contractx.UpdateStock:
		out = e.updateStock(ctx, cmd)
	case contractx.GetInfo:
		out = e.getInfo(ctx, cmd, intent)
	default:
		out = verbatim(intent)
	}

	if len(out.Path) == 0 {
		out.Path = []Stage{StageResolved, out.Stage}
	}

	if out.Failure == contractx.FailureNone && len(out.Facts) > 0 {
		out.Response = e.phrase(ctx, intent.Action, out, language)
	}

	evt := log.Ctx(ctx).Info()
	if out.Failure != contractx.FailureNone {
		evt = log.Ctx(ctx).Warn().Str("failure", string(out.Failure))
	}
	if out.Product != nil {
		evt = evt.Int64("product_id", out.Product.ID)
	}
	evt.Str("action", string(intent.Action)).
		Str("stage", string(out.Stage)).
		Bool("action_performed", out.ActionPerformed).
		Msg("executor: intent handled")

	return out
}

func (e *Executor) recordSale(ctx context.Context, cmd contractx.RecordSale) Outcome {
	p, failed, ok := e.lookup(ctx, cmd.Product)
	if !ok {
		return failed
	}
	qty, ok := cmd.Quantity.Positive()
	if !ok {
		return failure(contractx.FailureInvalidQuantity)(invalidQuantity(p.Name))
	}
	if err := ctx.Err(); err != nil {
		return validatedThen(storeFailure(ctx, err))
	}

	receipt, err := e.store.RecordSale(ctx, p.ID, qty)
	if err != nil {
		return validatedThen(e.mutationFailure(ctx, cmd.Product, err))
	}

	response, speech, facts := saleConfirmation(receipt)
	return Outcome{
		Stage:           StageConfirmed,
		Path:            confirmedPath(),
		Response:        response,
		Speech:          speech,
		ActionPerformed: true,
		Facts:           facts,
		Warning:         stockWarning(receipt.Product),
		Product:         &receipt.Product,
		Sale:            &receipt.Sale,
	}
}

func (e *Executor) updateStock(ctx context.Context, cmd contractx.UpdateStock) Outcome {
	p, failed, ok := e.lookup(ctx, cmd.Product)
	if !ok {
		return failed
	}
	delta, ok := cmd.Quantity.Int()
	if !ok || delta == 0 {
		return failure(contractx.FailureInvalidQuantity)(invalidQuantity(p.Name))
	}
	if err := ctx.Err(); err != nil {
		return validatedThen(storeFailure(ctx, err))
	}

	updated, err := e.store.AdjustStock(ctx, p.ID, delta)
	if err != nil {
		return validatedThen(e.mutationFailure(ctx, cmd.Product, err))
	}

	response, speech, facts := stockConfirmation(updated, delta)
	return Outcome{
		Stage:           StageConfirmed,
		Path:            confirmedPath(),
		Response:        response,
		Speech:          speech,
		ActionPerformed: true,
		Facts:           facts,
		Warning:         stockWarning(updated),
		Product:         &updated,
	}
}

func (e *Executor) lookup(ctx context.Context, name string) (store.Product, Outcome, bool) {
	p, err := e.store.FindByNameLike(ctx, name)
	switch {
	case err == nil:
		return p, Outcome{}, true
	case errors.Is(err, store.ErrProductNotFound):
		return store.Product{}, failure(contractx.FailureProductNotFound)(productNotFound(name)), false
	default:
		return store.Product{}, storeFailure(ctx, err), false
	}
}

func (e *Executor) mutationFailure(ctx context.Context, name string, err error) Outcome {
	var stockErr *store.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return failure(contractx.FailureInsufficientStock)(insufficientStock(stockErr))
	case errors.Is(err, store.ErrProductNotFound):
		return failure(contractx.FailureProductNotFound)(productNotFound(name))
	case errors.Is(err, store.ErrInvalidQuantity):
		return failure(contractx.FailureInvalidQuantity)(invalidQuantity(name))
	default:
		return storeFailure(ctx, err)
	}
}

func (e *Executor) getInfo(ctx context.Context, cmd contractx.GetInfo, intent contractx.ResolvedIntent) Outcome {
	today := e.now().In(e.loc)
	product := strings.TrimSpace(cmd.Product)

	switch cmd.QueryType {
	case contractx.QueryStockCheck:
		if product == "" {
			low, err := e.store.LowStock(ctx, 10)
			if err != nil {
				return noData(ctx, err)
			}
			response, speech := lowStockAnswer(low)
			return answered(response, speech, nil)
		}
		p, err := e.store.FindByNameLike(ctx, product)
		if err != nil {
			return noData(ctx, err)
		}
		response, speech, facts := stockAnswer(p)
		out := answered(response, speech, facts)
		out.Warning = stockWarning(p)
		out.Product = &p
		return out

	case contractx.QuerySalesReport:
		if product != "" {
			p, err := e.store.FindByNameLike(ctx, product)
			if err != nil {
				return noData(ctx, err)
			}
			rev, units, err := e.store.ProductRevenueOn(ctx, p.ID, today)
			if err != nil {
				return noData(ctx, err)
			}
			out := answered(productSalesAnswer(p, rev, units))
			out.Product = &p
			return out
		}
		rev, err := e.store.RevenueOn(ctx, today)
		if err != nil {
			return noData(ctx, err)
		}
		return answered(salesAnswer(rev))

	default:
		if strings.TrimSpace(intent.Response) != "" {
			return verbatim(intent)
		}
		rev, err := e.store.RevenueOn(ctx, today)
		if err != nil {
			return noData(ctx, err)
		}
		return answered(salesAnswer(rev))
	}
}

// phrase returns the phrased response when it keeps every fact as a whole
// number, otherwise the deterministic draft. A dropped warning is appended.
func (e *Executor) phrase(ctx context.Context, action contractx.Action, out Outcome, language string) string {
	if e.phraser == nil {
		return out.Response
	}
	text, err := e.phraser.Phrase(ctx, contractx.PhraseRequest{
		Action:   action,
		Draft:    out.Response,
		Facts:    out.Facts,
		Language: language,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("executor: phrasing failed, using draft")
		return out.Response
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return out.Response
	}
	for _, fact := range out.Facts {
		if !containsFact(text, fact) {
			log.Ctx(ctx).Debug().Str("missing_fact", fact).Msg("executor: phrased text dropped a fact, using draft")
			return out.Response
		}
	}
	if out.Warning != "" && !strings.Contains(text, out.Warning) {
		text += " " + out.Warning
	}
	return text
}

// containsFact reports whether fact occurs in text with no digit run glued to
// either side, so "3" is not found in "13" or "3.5" and "₹54" not in "₹540".
func containsFact(text, fact string) bool {
	if fact == "" {
		return true
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], fact)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(fact)
		if !numberBefore(text[:start]) && !numberAfter(text[end:]) {
			return true
		}
		from = start + 1
	}
	return false
}

func numberBefore(s string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	if isDigit(last) {
		return true
	}
	return (last == '.' || last == ',') && len(s) > 1 && isDigit(s[len(s)-2])
}

func numberAfter(s string) bool {
	if s == "" {
		return false
	}
	if isDigit(s[0]) {
		return true
	}
	return (s[0] == '.' || s[0] == ',') && len(s) > 1 && isDigit(s[1])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func verbatim(intent contractx.ResolvedIntent) Outcome {
	response := strings.TrimSpace(intent.Response)
	speech := strings.TrimSpace(intent.Speech)
	if response == "" {
		response = speech
	}
	if response == "" {
		response = msgDidNotCatch
	}
	return Outcome{
		Stage:    StageAnswered,
		Response: response,
		Speech:   speech,
		Failure:  intent.Failure,
	}
}

func confirmedPath() []Stage {
	return []Stage{StageResolved, StageValidated, StageApplied, StageConfirmed}
}

// validatedThen marks a failure that happened after validation passed.
func validatedThen(out Outcome) Outcome {
	out.Path = []Stage{StageResolved, StageValidated, out.Stage}
	return out
}

func answered(response, speech string, facts []string) Outcome {
	return Outcome{Stage: StageAnswered, Response: response, Speech: speech, Facts: facts}
}

func failure(kind contractx.FailureKind) func(response, speech string) Outcome {
	return func(response, speech string) Outcome {
		return Outcome{Stage: StageFailed, Response: response, Speech: speech, Failure: kind}
	}
}

func storeFailure(ctx context.Context, err error) Outcome {
	log.Ctx(ctx).Error().Err(err).Msg("executor: store operation failed")
	return failure(contractx.FailureStoreTransaction)(msgTryAgain, msgTryAgainTTS)
}

func noData(ctx context.Context, err error) Outcome {
	if !errors.Is(err, store.ErrProductNotFound) {
		log.Ctx(ctx).Warn().Err(err).Msg("executor: read failed")
	}
	return answered(msgNoData, msgNoData, nil)
}
