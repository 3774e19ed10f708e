// Package review drives a tip from payment through rating and decides where
// the rating is allowed to go.
package review

// Visibility says who may see a rating.
type Visibility string

const (
	// PromotionCandidate ratings may be published to a public review site.
	PromotionCandidate Visibility = "promotion_candidate"
	// PrivateFeedback ratings stay with the worker and the business.
	PrivateFeedback Visibility = "private_feedback"
	// NoFeedback means the tip was never rated.
	NoFeedback Visibility = "no_feedback"
)

// promotionThreshold is the lowest rating that may be published.
const promotionThreshold = 4

// Classify maps a rating to its visibility.
func Classify(rating *int) Visibility {
	switch {
	case rating == nil:
		return NoFeedback
	case *rating >= promotionThreshold:
		return PromotionCandidate
	default:
		return PrivateFeedback
	}
}
