package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Builder assembles a SELECT statement stage by stage: projections, joins,
// filters, derived viewer-relative fields, ordering. Each resource handler
// composes its own pipeline from these stages, and the count query for
// pagination metadata is derived from the same filters so the two can
// never drift apart.
type Builder struct {
	selects []string
	from    string
	joins   []string
	wheres  []string
	args    []any
	order   string
}

func From(table string) *Builder {
	return &Builder{from: table}
}

func (b *Builder) Select(exprs ...string) *Builder {
	b.selects = append(b.selects, exprs...)
	return b
}

func (b *Builder) Join(clause string) *Builder {
	b.joins = append(b.joins, clause)
	return b
}

func (b *Builder) Where(cond string) *Builder {
	b.wheres = append(b.wheres, cond)
	return b
}

// Arg binds a value and returns its positional placeholder, so conditions
// are written inline: b.Where("v.owner_id = " + b.Arg(ownerID)).
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *Builder) Order(s Sort) *Builder {
	b.order = s.Clause()
	return b
}

// SelectEngagement projects likesCount and isLiked for a like-bearing
// entity. fkCol names the likes column referencing the entity (video_id,
// comment_id, tweet_id) and pk is the entity's id expression. A guest
// viewer gets a constant false isLiked; the absent identity is never
// bound into the query.
func (b *Builder) SelectEngagement(pk, fkCol string, v Viewer) *Builder {
	b.Select(fmt.Sprintf("(SELECT COUNT(*) FROM likes l WHERE l.%s = %s) AS likes_count", fkCol, pk))
	if v.IsGuest() {
		b.Select("false AS is_liked")
	} else {
		b.Select(fmt.Sprintf("EXISTS (SELECT 1 FROM likes l WHERE l.%s = %s AND l.liked_by = %s) AS is_liked", fkCol, pk, b.Arg(v.UserID())))
	}
	return b
}

// SelectSubscription projects subscribersCount and isSubscribed for a
// channel (a user id expression), under the same guest rule.
func (b *Builder) SelectSubscription(channel string, v Viewer) *Builder {
	b.Select(fmt.Sprintf("(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = %s) AS subscribers_count", channel))
	if v.IsGuest() {
		b.Select("false AS is_subscribed")
	} else {
		b.Select(fmt.Sprintf("EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = %s AND s.subscriber_id = %s) AS is_subscribed", channel, b.Arg(v.UserID())))
	}
	return b
}

func (b *Builder) body() string {
	var sb strings.Builder
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.wheres, " AND "))
	}
	return sb.String()
}

func (b *Builder) SQL() string {
	sql := "SELECT " + strings.Join(b.selects, ", ") + b.body()
	if b.order != "" {
		sql += " " + b.order
	}
	return sql
}

func (b *Builder) Args() []any {
	return b.args
}

// CountSQL is the totalDocs query: same source and filters, no
// projections, no ordering. It shares Args with SQL.
func (b *Builder) CountSQL() string {
	return "SELECT COUNT(*)" + b.body()
}

// PageSQL appends the pagination window. The returned args extend Args
// without mutating the builder, so CountSQL can still be executed with
// the original bindings.
func (b *Builder) PageSQL(p Params) (string, []any) {
	n := len(b.args)
	sql := fmt.Sprintf("%s LIMIT $%d OFFSET $%d", b.SQL(), n+1, n+2)
	args := make([]any, 0, n+2)
	args = append(args, b.args...)
	args = append(args, p.Limit, p.Offset())
	return sql, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike neutralizes ILIKE wildcards in user-supplied search text.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
