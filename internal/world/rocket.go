package world

// RocketID is the creation time of a rocket in Unix milliseconds, kept
// strictly increasing within one shard.
type RocketID int64

// Rocket is a projectile. It never subscribes to cells; its interest is
// resolved against the ships' subscriptions.
type Rocket struct {
	ID   RocketID
	From EntityID
	Motion
}
