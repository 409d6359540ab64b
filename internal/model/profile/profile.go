package profile

// Profile captures the bot branding exposed to the frontend and the greeting
// every new session is seeded with.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Greeting string `json:"greeting"`
}

const DefaultID = "euro-bot"

// Default returns the EURO-Bot profile.
func Default() Profile {
	return Profile{
		ID:       DefaultID,
		Name:     "EURO-Bot",
		Title:    "Your European Specialist Assistant",
		Greeting: "Hello! I'm your Euro-Bot, European specialist. How can I help you today?",
	}
}

// WithOverrides returns p with every non-empty override applied.
func (p Profile) WithOverrides(name, title, greeting string) Profile {
	if name != "" {
		p.Name = name
	}
	if title != "" {
		p.Title = title
	}
	if greeting != "" {
		p.Greeting = greeting
	}
	return p
}
