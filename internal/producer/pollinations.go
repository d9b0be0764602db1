// Image producer backed by the Pollinations prompt-URL service.
//
// Pollinations renders on fetch: producing an image is building a prompt URL
// with a seed, so this adapter performs no network I/O of its own. Variants
// differ only by seed, which keeps the three images on-theme but distinct.
package producer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
)

const defaultImageCount = 3

// ImageProducer builds seeded Pollinations image URLs for a request.
type ImageProducer struct {
	count int
	// seedFn supplies the per-variant seed; swapped out in tests for
	// deterministic URLs.
	seedFn func() int
}

// NewImageProducer builds an ImageProducer emitting count variants per
// request (3 when count <= 0).
func NewImageProducer(count int) *ImageProducer {
	if count <= 0 {
		count = defaultImageCount
	}
	return &ImageProducer{
		count:  count,
		seedFn: func() int { return 100 + rand.IntN(99900) },
	}
}

// Name implements Producer.
func (p *ImageProducer) Name() string { return "image" }

// Produce returns an ImageSetOutput with count seeded prompt URLs. It cannot
// fail except on an empty resolved prompt.
func (p *ImageProducer) Produce(ctx context.Context, req Request) (Output, error) {
	prompt := ImagePrompt(req)
	if prompt == "" {
		return nil, failf(p.Name(), "empty prompt")
	}
	encoded := url.PathEscape(prompt)

	urls := make([]string, 0, p.count)
	for i := 0; i < p.count; i++ {
		urls = append(urls, fmt.Sprintf(
			"https://image.pollinations.ai/prompt/%s?width=1024&height=1024&nologo=true&seed=%d&model=flux",
			encoded, p.seedFn()))
	}
	return &ImageSetOutput{URLs: urls}, nil
}
