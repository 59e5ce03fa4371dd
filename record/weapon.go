package record

import "strings"

// Weapon packs the weapon kind in the low two bits and a shooting flag.
type Weapon uint8

const (
	Unarmed Weapon = 0
	Other   Weapon = 1
	Knife   Weapon = 2
	Firearm Weapon = 3

	// ShootingFlag is set when a shooting occurred.
	ShootingFlag Weapon = 4

	armsMask Weapon = 3
)

// Arms returns the weapon kind without the shooting flag.
func (w Weapon) Arms() Weapon { return w & armsMask }

// HasShooting reports whether the shooting flag is set.
func (w Weapon) HasShooting() bool { return w&ShootingFlag != 0 }

// ParseWeapon maps a WEAPONTYPE value and a Shooting value to flags. Unknown
// weapon kinds count as unarmed.
func ParseWeapon(kind, shooting string) Weapon {
	var w Weapon
	switch first(kind) {
	case 'O':
		w = Other
	case 'K':
		w = Knife
	case 'F':
		w = Firearm
	}
	if first(shooting) == 'Y' {
		w |= ShootingFlag
	}
	return w
}

func first(s string) byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c
}
