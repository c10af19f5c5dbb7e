package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/paydefense/sentinel/internal/alerts"
	"github.com/paydefense/sentinel/internal/behavior"
	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/controls"
	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/idgen"
	"github.com/paydefense/sentinel/internal/metrics"
	"github.com/paydefense/sentinel/internal/money"
	"github.com/paydefense/sentinel/internal/risk"
	"github.com/paydefense/sentinel/internal/traces"
)

// Outcome statuses beyond the stored transaction statuses.
const OutcomeStepUpPending = "step_up_pending"

// pendingExpiry bounds how long an unconfirmed step-up transfer is held.
const pendingExpiry = 5 * time.Minute

// TransferRequest is one transfer attempt.
type TransferRequest struct {
	FromAccount string        `json:"from_account" binding:"required"`
	ToAccount   string        `json:"to_account" binding:"required"`
	Amount      string        `json:"amount" binding:"required"`
	Context     clock.Context `json:"context"`

	stepUpSatisfied bool
}

// TransferOutcome reports what the engine decided about one attempt.
type TransferOutcome struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	PendingID     string `json:"pending_id,omitempty"`

	RiskScore    int      `json:"risk_score"`
	RiskReasons  []string `json:"risk_reasons,omitempty"`
	Flagged      bool     `json:"flagged"`
	MLPrediction float64  `json:"ml_prediction"`
	MLFlagged    bool     `json:"ml_flagged"`

	DeviationScore int      `json:"deviation_score"`
	Deviations     []string `json:"deviations,omitempty"`

	RequiresStepUp bool   `json:"requires_step_up,omitempty"`
	DeniedBy       string `json:"denied_by,omitempty"`
	DenialReason   string `json:"denial_reason,omitempty"`
}

type pendingTransfer struct {
	id      string
	req     TransferRequest
	created time.Time
}

// Transfer runs the full pipeline: validate, score, gate, then block,
// park for step-up, or commit. Validation failures return errors and
// leave no trace; every outcome past validation is recorded.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferOutcome, error) {
	ctx, span := traces.StartSpan(ctx, "ledger.Transfer",
		traces.AccountNumber(req.FromAccount),
		traces.Amount(req.Amount))
	defer span.End()

	now := s.clk.Now()

	// Validating.
	amount, ok := money.Parse(req.Amount)
	if !ok || amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive decimal", ErrValidation)
	}
	if req.FromAccount == req.ToAccount {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", ErrValidation)
	}
	from, err := s.store.Account(ctx, req.FromAccount)
	if err != nil {
		return nil, err
	}
	to, err := s.store.Account(ctx, req.ToAccount)
	if err != nil {
		return nil, err
	}
	if from.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, from.Number)
	}
	if from.Balance < amount {
		return nil, fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, from.Balance, amount)
	}

	// Scoring. Both detectors always run, even when the gate will deny.
	snap, sender, err := s.snapshot(ctx, from, to, now)
	if err != nil {
		return nil, err
	}
	cand := &risk.Candidate{
		Amount: amount,
		IP:     req.Context.IP,
		Device: req.Context.Device,
		Geo:    req.Context.Geo,
		At:     now,
	}
	assessment := s.scorer.Evaluate(cand, snap)
	prediction := s.model.Predict(cand, snap)
	dev := s.profiler.Deviation(sender.ID, behavior.Activity{
		Amount: amount,
		IP:     req.Context.IP,
		Device: req.Context.Device,
		Geo:    req.Context.Geo,
		At:     now,
	})
	metrics.RiskScore.Observe(float64(assessment.Score))
	span.SetAttributes(traces.RiskScore(assessment.Score))

	outcome := &TransferOutcome{
		RiskScore:      assessment.Score,
		RiskReasons:    assessment.Reasons,
		Flagged:        assessment.Flagged,
		MLPrediction:   prediction.Probability,
		MLFlagged:      prediction.Flagged,
		DeviationScore: dev.Score,
		Deviations:     dev.Deviations,
	}

	// Gating.
	daily := money.Amount(0)
	if from.DailyDate == clock.DateKey(now) {
		daily = from.DailyTransferred
	}
	decision := s.gate.Check(controls.Request{
		Action:           controls.ActionTransfer,
		Now:              now,
		IP:               req.Context.IP,
		Amount:           amount,
		DailyTransferred: daily,
		RiskScore:        assessment.Score,
		StepUpSatisfied:  req.stepUpSatisfied,
	})

	if !decision.Allowed {
		txn := s.buildTransaction(req, from, to, amount, StatusBlocked, assessment, prediction, now)
		txn.RiskReasons = append(txn.RiskReasons, decision.Reason)
		if err := s.store.AppendTransaction(ctx, txn); err != nil {
			return nil, err
		}
		outcome.Status = StatusBlocked
		outcome.TransactionID = txn.ID
		outcome.DeniedBy = string(decision.Control)
		outcome.DenialReason = decision.Reason
		metrics.TransfersTotal.WithLabelValues(StatusBlocked).Inc()
		metrics.GateDenialsTotal.WithLabelValues(string(decision.Control)).Inc()
		s.logger.Info("transfer blocked",
			"txn_id", txn.ID,
			"control", decision.Control,
			"risk_score", assessment.Score)
		s.appendEvent(eventlog.CategoryTransfer, "transfer %s -> %s for $%s blocked by %s",
			from.Number, to.Number, amount, decision.Control)
		return outcome, nil
	}

	if decision.RequiresStepUp {
		p := &pendingTransfer{
			id:      idgen.WithPrefix(idgen.PrefixPending),
			req:     req,
			created: now,
		}
		s.pmu.Lock()
		s.pending[p.id] = p
		s.pmu.Unlock()

		outcome.Status = OutcomeStepUpPending
		outcome.PendingID = p.id
		outcome.RequiresStepUp = true
		s.logger.Info("transfer parked for step-up", "pending_id", p.id, "risk_score", assessment.Score)
		s.appendEvent(eventlog.CategoryTransfer, "transfer %s -> %s for $%s held for step-up confirmation",
			from.Number, to.Number, amount)
		return outcome, nil
	}

	// Committing.
	status := StatusCompleted
	if assessment.Flagged {
		status = StatusFlagged
	}
	txn := s.buildTransaction(req, from, to, amount, status, assessment, prediction, now)
	if err := s.store.CommitTransfer(ctx, txn, clock.DateKey(now)); err != nil {
		return nil, err
	}
	outcome.Status = status
	outcome.TransactionID = txn.ID

	s.profiler.Observe(sender.ID, behavior.Activity{
		Amount: amount,
		IP:     req.Context.IP,
		Device: req.Context.Device,
		Geo:    req.Context.Geo,
		At:     now,
	})
	metrics.TransfersTotal.WithLabelValues(status).Inc()
	s.logger.Info("transfer committed",
		"txn_id", txn.ID,
		"status", status,
		"amount", amount.String(),
		"risk_score", assessment.Score,
		"ml_prediction", prediction.Probability)
	s.appendEvent(eventlog.CategoryTransfer, "transfer %s -> %s for $%s %s (risk %d)",
		from.Number, to.Number, amount, status, assessment.Score)

	if assessment.Flagged {
		s.alerts.Raise(alerts.Alert{
			Severity:      alerts.SeverityForScore(assessment.Score),
			Title:         fmt.Sprintf("flagged transfer of $%s from %s", amount, from.Number),
			Reasons:       assessment.Reasons,
			UserID:        sender.ID,
			TransactionID: txn.ID,
		})
	}
	return outcome, nil
}

// ConfirmStepUp resumes a parked transfer. The wrong code fails without
// consuming the pending entry; the right one re-runs the pipeline with
// the challenge satisfied, so a denial can still happen if controls
// changed in between.
func (s *Service) ConfirmStepUp(ctx context.Context, pendingID, code string) (*TransferOutcome, error) {
	now := s.clk.Now()

	s.pmu.Lock()
	p, ok := s.pending[pendingID]
	if ok && now.Sub(p.created) > pendingExpiry {
		delete(s.pending, pendingID)
		ok = false
	}
	if !ok {
		s.pmu.Unlock()
		return nil, fmt.Errorf("%w: pending transfer %s", ErrNotFound, pendingID)
	}
	if code != s.stepUpCode {
		s.pmu.Unlock()
		return nil, fmt.Errorf("%w", ErrInvalidCode)
	}
	delete(s.pending, pendingID)
	s.pmu.Unlock()

	req := p.req
	req.stepUpSatisfied = true
	s.appendEvent(eventlog.CategoryTransfer, "step-up confirmed for pending transfer %s", pendingID)
	return s.Transfer(ctx, req)
}

// PendingStepUps reports how many transfers await confirmation.
func (s *Service) PendingStepUps() int {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	return len(s.pending)
}

func (s *Service) buildTransaction(req TransferRequest, from, to *Account, amount money.Amount,
	status string, a risk.Assessment, p risk.Prediction, now time.Time) *Transaction {
	t := &Transaction{
		ID:           idgen.WithPrefix(idgen.PrefixTransaction),
		FromAccount:  from.Number,
		ToAccount:    to.Number,
		FromUserID:   from.UserID,
		ToUserID:     to.UserID,
		Amount:       amount,
		Status:       status,
		RiskScore:    a.Score,
		RiskReasons:  append([]string(nil), a.Reasons...),
		MLPrediction: p.Probability,
		MLFlagged:    p.Flagged,
		IP:           req.Context.IP,
		Device:       req.Context.Device,
		Geo:          req.Context.Geo,
		CreatedAt:    now,
	}
	if status == StatusFlagged {
		t.ReviewStatus = ReviewPending
	}
	return t
}
