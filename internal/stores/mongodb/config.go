package mongodb

import (
	"fmt"
	"strings"
)

// MongoConfig carries the connection settings for the mongo catalog store.
type MongoConfig struct {
	Protocol string // e.g., "mongodb", "mongodb+srv"
	Host     string
	User     string
	Pwd      string
	Params   string
	DBName   string
}

// MongoConnectionBuilder builds MongoDB connection strings.
type MongoConnectionBuilder struct {
	protocol string
	host     string
	user     string
	pwd      string
	params   string
}

// NewMongoConnectionBuilder creates a builder with the specified protocol
// and host.
func NewMongoConnectionBuilder(p, h string) MongoConnectionBuilder {
	return MongoConnectionBuilder{
		protocol: p,
		host:     h,
	}
}

func (b MongoConnectionBuilder) WithUser(u string) MongoConnectionBuilder {
	b.user = u
	return b
}

func (b MongoConnectionBuilder) WithPassword(p string) MongoConnectionBuilder {
	b.pwd = p
	return b
}

func (b MongoConnectionBuilder) WithConnectionParams(p string) MongoConnectionBuilder {
	b.params = p
	return b
}

// Build constructs the MongoDB connection string. The result is formatted as
// "[protocol]://[user[:password]@]host[/params]". The plain "mongodb"
// protocol requires connection parameters.
func (b MongoConnectionBuilder) Build() (string, error) {
	if b.protocol == "" || b.host == "" {
		return "", fmt.Errorf("missing required parameters: protocol and host are required")
	}

	if b.protocol == "mongodb" && b.params == "" {
		return "", fmt.Errorf("missing required connection parameters")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s://", b.protocol))

	if b.user != "" {
		sb.WriteString(b.user)
		if b.pwd != "" {
			sb.WriteString(":" + b.pwd)
		}
		sb.WriteString("@")
	}

	sb.WriteString(b.host)

	if b.protocol == "mongodb" {
		sb.WriteString("/" + b.params)
	}

	return sb.String(), nil
}
