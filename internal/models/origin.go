package models

// Origin tags a local mutation with where it came from. Writes applied
// while handling a feed event carry FeedOrigin so the push-back hook does
// not fire again for changes the remote already knows about.
type Origin int

const (
	LocalOrigin Origin = iota
	FeedOrigin
)

func (o Origin) String() string {
	if o == FeedOrigin {
		return "feed"
	}
	return "local"
}
