package model

import "time"

// Encounter is a combat instance against one enemy template inside one session.
// At most one exists per (SessionID, EnemySlug).
type Encounter struct {
	ID        string    `json:"encounterId" bson:"_id"`
	SessionID string    `json:"sessionId" bson:"sessionId"`
	EnemySlug string    `json:"enemySlug" bson:"enemySlug"`
	EnemyID   string    `json:"enemyId" bson:"enemyId"`
	CurrentHP int       `json:"currentHp" bson:"currentHp"`
	MaxHP     int       `json:"maxHp" bson:"maxHp"`
	IsAlive   bool      `json:"isAlive" bson:"isAlive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// EnemyTemplate is read-only reference data for enemies, keyed by slug
type EnemyTemplate struct {
	ID         string `json:"enemyId" bson:"_id"`
	Slug       string `json:"slug" bson:"slug"`
	Name       string `json:"enemyName" bson:"name"`
	BaseHP     int    `json:"baseHp" bson:"baseHp"`
	BaseAttack int    `json:"baseAttack" bson:"baseAttack"`
	Image      string `json:"enemyImage,omitempty" bson:"image,omitempty"`
}
