package service

import (
	"sort"
	"strings"

	"procurement-api/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// criterionType falls back to the criterion name when no type was given.
func criterionType(c models.EvaluationCriterion) models.CriterionType {
	if c.Type != "" {
		return c.Type
	}
	name := strings.ToLower(c.Name)
	switch {
	case strings.Contains(name, "price"), strings.Contains(name, "cost"):
		return models.CriterionPrice
	case strings.Contains(name, "delivery"), strings.Contains(name, "lead time"):
		return models.CriterionDelivery
	case strings.Contains(name, "quality"):
		return models.CriterionQuality
	case strings.Contains(name, "technical"):
		return models.CriterionTechnical
	}
	return models.CriterionOther
}

// Evaluate scores and ranks every quotation on the tender.
//
// Price criteria score lowest_total/total*100 and delivery criteria
// fastest_days/days*100; every other criterion uses the submitted score for
// its id, 0 when absent. A quotation's weighted score is the sum of
// score*weight/100 rounded to cents. Ties go to the lower total, then the
// earlier submission.
func Evaluate(t *models.Tender) *models.TenderEvaluation {
	eval := &models.TenderEvaluation{TenderID: t.ID, Status: t.Status, Ranking: []models.RankedQuotation{}}
	if len(t.Quotations) == 0 {
		return eval
	}

	lowest, fastest := t.Quotations[0].Total, t.Quotations[0].DeliveryDays
	for _, q := range t.Quotations[1:] {
		if q.Total.LessThan(lowest) {
			lowest = q.Total
		}
		if q.DeliveryDays < fastest {
			fastest = q.DeliveryDays
		}
	}

	byID := make(map[string]models.Quotation, len(t.Quotations))
	for _, q := range t.Quotations {
		byID[q.ID] = q
		ranked := models.RankedQuotation{
			QuotationID:  q.ID,
			VendorID:     q.VendorID,
			VendorName:   q.VendorName,
			Total:        q.Total,
			DeliveryDays: q.DeliveryDays,
			Breakdown:    make([]models.CriterionScore, 0, len(t.EvaluationCriteria)),
		}
		sum := decimal.Zero
		for _, c := range t.EvaluationCriteria {
			score := criterionScore(c, q, lowest, fastest)
			weighted := score.Mul(c.Weight).Div(hundred)
			sum = sum.Add(weighted)
			ranked.Breakdown = append(ranked.Breakdown, models.CriterionScore{
				CriterionID: c.ID,
				Name:        c.Name,
				Weight:      c.Weight,
				Score:       score.Round(2),
				Weighted:    weighted.Round(2),
			})
		}
		ranked.WeightedScore = sum.Round(2)
		eval.Ranking = append(eval.Ranking, ranked)
	}

	sort.SliceStable(eval.Ranking, func(i, j int) bool {
		a, b := eval.Ranking[i], eval.Ranking[j]
		if c := a.WeightedScore.Cmp(b.WeightedScore); c != 0 {
			return c > 0
		}
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c < 0
		}
		sa, sb := byID[a.QuotationID].SubmittedAt, byID[b.QuotationID].SubmittedAt
		if !sa.Equal(sb) {
			return sa.Before(sb)
		}
		return a.QuotationID < b.QuotationID
	})
	for i := range eval.Ranking {
		eval.Ranking[i].Rank = i + 1
	}
	eval.Recommended = eval.Ranking[0].QuotationID
	return eval
}

func criterionScore(c models.EvaluationCriterion, q models.Quotation, lowest decimal.Decimal, fastest int) decimal.Decimal {
	switch criterionType(c) {
	case models.CriterionPrice:
		if !q.Total.IsPositive() {
			return hundred
		}
		return lowest.Div(q.Total).Mul(hundred)
	case models.CriterionDelivery:
		if q.DeliveryDays <= 0 {
			return hundred
		}
		return decimal.NewFromInt(int64(fastest)).Div(decimal.NewFromInt(int64(q.DeliveryDays))).Mul(hundred)
	}
	score, ok := q.Scores[c.ID]
	if !ok {
		return decimal.Zero
	}
	switch {
	case score.IsNegative():
		return decimal.Zero
	case score.GreaterThan(hundred):
		return hundred
	}
	return score
}
