package config

import "context"

// Seed is a catalog of courses and students created at startup.
type Seed struct {
	Courses  []SeedCourse  `yaml:"courses"`
	Students []SeedStudent `yaml:"students"`
}

type SeedCourse struct {
	Name    string       `yaml:"name"`
	Price   string       `yaml:"price"`
	Active  *bool        `yaml:"active,omitempty"`
	Lessons []SeedLesson `yaml:"lessons"`
}

type SeedLesson struct {
	Title    string `yaml:"title"`
	Order    int    `yaml:"order"`
	Required bool   `yaml:"required"`
}

type SeedStudent struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
}

// SeedLoader provides a seed catalog. It abstracts the source so a file,
// an embedded asset or a remote store can supply it.
type SeedLoader interface {
	Load(ctx context.Context) (*Seed, error)
}
