package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// seedTables lists tables in delete order (children first).
var seedTables = []string{
	"pending_notification_events",
	"matches",
	"introduction_requests",
	"signals",
	"notification_preferences",
	"profiles",
	"users",
}

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears every consent table and `users`.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords.
//  3. Every 4th user is on the "gold" tier; users 5 and 15 require guardian
//     approval, with users 20 and 10 as their guardians.
//  4. Every 3rd user gets a daily digest preference instead of instant.
//  5. Writes historic signals (older than today, so quotas start fresh),
//     ~60% of them positive.
//
// Matches are not seeded: they come from signals through the pipeline.
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range seedTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	for _, table := range seedTables {
		switch db.Dialector.Name() {
		case "mysql":
			db.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		case "sqlite":
			db.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table)
		}
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// --- Seed Users (10 male, 10 female) ---
	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}

		user := User{
			ID:           uint64(i),
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Gender:       gender,
			Active:       true,
			LastLoginAt:  time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		profile := Profile{UserID: user.ID, Tier: "free", UpdatedAt: time.Now().UTC()}
		if i%4 == 0 {
			profile.Tier = "gold"
		}
		if guardian, ok := map[int]uint64{5: 20, 15: 10}[i]; ok {
			profile.RequireGuardianApproval = true
			profile.GuardianUserID = &guardian
			profile.GuardianContact = fmt.Sprintf("user%d@example.com", guardian)
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}

		pref := NotificationPreference{
			UserID:            user.ID,
			Enabled:           true,
			MatchOptIn:        true,
			MessageOptIn:      true,
			IntroductionOptIn: true,
			Frequency:         "instant",
			UpdatedAt:         time.Now().UTC(),
		}
		if i%3 == 0 {
			pref.Frequency = "daily"
		}
		if err := db.Create(&pref).Error; err != nil {
			return fmt.Errorf("failed to seed preference: %w", err)
		}
	}
	log.Println("Seeded 20 users with profiles and preferences.")

	// --- Seed historic signals ---
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).Add(-time.Hour)
	var signals []Signal
	for from := 1; from <= 20; from++ {
		for j := 0; j < 8; j++ {
			to := r.Intn(20) + 1
			if to == from || (from <= 10) == (to <= 10) {
				continue
			}
			kind := KindPass
			switch n := r.Intn(100); {
			case n < 50:
				kind = KindLike
			case n < 60:
				kind = KindSuperInterest
			}
			signals = append(signals, Signal{
				FromUserID: uint64(from),
				ToUserID:   uint64(to),
				Kind:       kind,
				CreatedAt:  yesterday.Add(-time.Duration(r.Intn(72*60)) * time.Minute),
			})
		}
	}
	if len(signals) > 0 {
		if err := db.CreateInBatches(&signals, 100).Error; err != nil {
			return fmt.Errorf("failed to seed signals: %w", err)
		}
	}
	log.Printf("Seeded %d signals.", len(signals))

	return nil
}
