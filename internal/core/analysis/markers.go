package analysis

import "github.com/artpar/deploysmith/internal/core/domain"

// =============================================================================
// Marker Tables
// =============================================================================

// packageMarker maps a dependency manifest to the language it implies.
type packageMarker struct {
	File     string
	Language string
}

// packageMarkers is probed in order; the order decides Languages ordering.
var packageMarkers = []packageMarker{
	{"package.json", domain.EcosystemNode},
	{"requirements.txt", domain.EcosystemPython},
	{"Pipfile", domain.EcosystemPython},
	{"setup.py", domain.EcosystemPython},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Cargo.toml", domain.EcosystemRust},
	{"go.mod", "go"},
	{"composer.json", "php"},
}

// commonFiles are structure markers recorded in RepositoryProfile.Structure.
var commonFiles = []string{
	"Dockerfile", "docker-compose.yml", ".dockerignore",
	"README.md", "LICENSE", ".gitignore",
	"main.py", "app.py", "server.js", "index.js",
}

// entryPointFiles are the common files that are also conventional entry points.
var entryPointFiles = map[string]bool{
	"main.py":   true,
	"app.py":    true,
	"server.js": true,
	"index.js":  true,
}

// Web framework allow-lists. A dependency on any of these marks the repository
// as a web application.
var (
	nodeWebFrameworks   = []string{"express", "react", "vue", "angular", "next", "nuxt", "fastify", "koa"}
	pythonWebFrameworks = []string{"flask", "django", "fastapi", "tornado", "pyramid", "bottle"}
)

// Default ports per framework family.
const (
	nodeWebPort    = 3000
	fastAPIPort    = 8000
	pythonWebPort  = 5000
	fastAPIPackage = "fastapi"
)

const composeFile = "docker-compose.yml"
