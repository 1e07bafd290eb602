package gifting

import "time"

// CardPosition classifies where a card sits relative to the active one.
type CardPosition string

const (
	PositionActive        CardPosition = "active"
	PositionViewedLeft    CardPosition = "viewed-left"
	PositionUnviewedRight CardPosition = "unviewed-right"
	PositionHidden        CardPosition = "hidden"
)

// CardTransform is the visual placement the renderer applies to a card.
// X is in pixels, RotateY in degrees, Brightness and Opacity in [0, 1].
type CardTransform struct {
	X          float64
	Scale      float64
	ZIndex     int
	Opacity    float64
	RotateY    float64
	Brightness float64
}

const (
	settleDelay       = 300 * time.Millisecond
	swipeThreshold    = 50.0
	velocityThreshold = 300.0

	// A full card width of drag maps to dragX = 1.
	dragSpan = 200.0

	stackBase = 280.0
	stackStep = 50.0
	flyOut    = 600.0
)

// Carousel owns the registry view state: the active index, the order cards
// were visited in, and the in-progress drag offset. Transform computation is
// pure; navigation is guarded by a settle deadline matching the 300ms card
// animation.
type Carousel struct {
	size     int
	current  int
	viewed   []int
	dragX    float64
	settleAt time.Time
	now      func() time.Time
}

type CarouselOption func(*Carousel)

// WithClock overrides the carousel's time source.
func WithClock(now func() time.Time) CarouselOption {
	return func(c *Carousel) {
		c.now = now
	}
}

func NewCarousel(size int, opts ...CarouselOption) *Carousel {
	c := &Carousel{
		size: size,
		now:  time.Now,
	}

	if size > 0 {
		c.viewed = []int{0}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Carousel) Current() int {
	return c.current
}

func (c *Carousel) DragX() float64 {
	return c.dragX
}

// Viewed returns the visit history in order, oldest first.
func (c *Carousel) Viewed() []int {
	out := make([]int, len(c.viewed))
	copy(out, c.viewed)
	return out
}

// Animating reports whether a card transition is still settling.
func (c *Carousel) Animating() bool {
	return c.now().Before(c.settleAt)
}

// Advance moves to the next card, wrapping at the end of the list. It reports
// whether the move was accepted; moves are rejected while a transition is
// settling or when the list is empty.
func (c *Carousel) Advance() bool {
	return c.moveTo((c.current + 1) % max(c.size, 1))
}

// Retreat moves to the previous card, wrapping at the start of the list.
func (c *Carousel) Retreat() bool {
	return c.moveTo((c.current - 1 + c.size) % max(c.size, 1))
}

func (c *Carousel) moveTo(index int) bool {
	if c.size == 0 || c.Animating() {
		return false
	}

	c.current = index

	if c.visitOrder(index) < 0 {
		c.viewed = append(c.viewed, index)
	}

	c.settleAt = c.now().Add(settleDelay)

	return true
}

// Drag records an in-progress gesture offset in pixels. The stored dragX is
// the offset as a fraction of card width, clamped to [-1, 1].
func (c *Carousel) Drag(offsetPx float64) {
	x := offsetPx / dragSpan
	if x > 1 {
		x = 1
	}
	if x < -1 {
		x = -1
	}
	c.dragX = x
}

// EndDrag resolves a completed gesture. The swipe triggers navigation when
// the displacement or release velocity clears its threshold; otherwise the
// gesture is discarded and the view state is exactly as before it began.
func (c *Carousel) EndDrag(offsetPx, velocity float64) {
	defer func() { c.dragX = 0 }()

	if c.size == 0 {
		return
	}

	shouldSwipe := abs(offsetPx) > swipeThreshold || abs(velocity) > velocityThreshold
	if !shouldSwipe {
		return
	}

	if offsetPx > 0 || velocity > 0 {
		c.Retreat()
	} else {
		c.Advance()
	}
}

// Position classifies a card: the active index is front and center, cards
// visited before it stack to the left, unvisited cards stack to the right,
// and cards visited after it fly out hidden.
func (c *Carousel) Position(index int) CardPosition {
	if index == c.current {
		return PositionActive
	}

	order := c.visitOrder(index)

	if order >= 0 && order < c.visitOrder(c.current) {
		return PositionViewedLeft
	}

	if order < 0 {
		return PositionUnviewedRight
	}

	return PositionHidden
}

// Transform computes the visual placement for a card. Stacked cards fan out a
// fixed step per rank behind the active card; the active card follows the live
// drag offset directly, stacked cards at half rate.
func (c *Carousel) Transform(index int) CardTransform {
	switch c.Position(index) {
	case PositionActive:
		return CardTransform{
			X:          c.dragX * dragSpan,
			Scale:      1,
			ZIndex:     40,
			Opacity:    1,
			RotateY:    0,
			Brightness: 1,
		}

	case PositionViewedLeft:
		rank := c.leftRank(index)
		return CardTransform{
			X:          -stackBase - float64(rank)*stackStep + c.dragX*dragSpan/2,
			Scale:      0.85,
			ZIndex:     30 - rank,
			Opacity:    0.7,
			RotateY:    -8,
			Brightness: 0.6,
		}

	case PositionUnviewedRight:
		rank := c.rightRank(index)
		return CardTransform{
			X:          stackBase + float64(rank)*stackStep + c.dragX*dragSpan/2,
			Scale:      0.85,
			ZIndex:     20 - rank,
			Opacity:    0.7,
			RotateY:    8,
			Brightness: 0.6,
		}

	default:
		x := flyOut
		if index < c.current {
			x = -flyOut
		}
		return CardTransform{
			X:          x,
			Scale:      0.7,
			ZIndex:     0,
			Opacity:    0,
			RotateY:    0,
			Brightness: 1,
		}
	}
}

// leftRank is the card's rank within the left stack: 0 for the most recently
// left-of-active card, growing with distance.
func (c *Carousel) leftRank(index int) int {
	currentOrder := c.visitOrder(c.current)

	rank := 0
	for order := len(c.viewed) - 1; order >= 0; order-- {
		i := c.viewed[order]
		if i == c.current || order >= currentOrder {
			continue
		}
		if i == index {
			return rank
		}
		rank++
	}

	return 0
}

// rightRank is the card's rank within the right stack, in list order.
func (c *Carousel) rightRank(index int) int {
	rank := 0
	for i := 0; i < c.size; i++ {
		if i == c.current || c.visitOrder(i) >= 0 {
			continue
		}
		if i == index {
			return rank
		}
		rank++
	}
	return 0
}

func (c *Carousel) visitOrder(index int) int {
	for order, i := range c.viewed {
		if i == index {
			return order
		}
	}
	return -1
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
