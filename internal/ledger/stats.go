package ledger

import (
	"context"

	"github.com/paydefense/sentinel/internal/risk"
)

// DetectionStats compares the two detectors across all recorded
// transactions. The rule verdict serves as ground truth for the model's
// precision and recall; with no labeled data in the system, rule
// agreement is the only reference available, so "accuracy" here means
// agreement with the rules, not with actual fraud.
type DetectionStats struct {
	Total        int `json:"total"`
	RuleFlagged  int `json:"rule_flagged"`
	ModelFlagged int `json:"model_flagged"`
	BothFlagged  int `json:"both_flagged"`
	Blocked      int `json:"blocked"`

	Agreement float64 `json:"agreement"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Stats computes detection statistics over every transaction.
func (s *Service) Stats(ctx context.Context) (*DetectionStats, error) {
	txns, err := s.store.Transactions(ctx, 0)
	if err != nil {
		return nil, err
	}

	st := &DetectionStats{Total: len(txns)}
	agree := 0
	for _, t := range txns {
		ruleFlag := t.RiskScore >= risk.FlagThreshold
		if t.Status == StatusBlocked {
			st.Blocked++
		}
		if ruleFlag {
			st.RuleFlagged++
		}
		if t.MLFlagged {
			st.ModelFlagged++
		}
		if ruleFlag && t.MLFlagged {
			st.BothFlagged++
		}
		if ruleFlag == t.MLFlagged {
			agree++
		}
	}
	if st.Total > 0 {
		st.Agreement = float64(agree) / float64(st.Total)
	}
	if st.ModelFlagged > 0 {
		st.Precision = float64(st.BothFlagged) / float64(st.ModelFlagged)
	}
	if st.RuleFlagged > 0 {
		st.Recall = float64(st.BothFlagged) / float64(st.RuleFlagged)
	}
	return st, nil
}
