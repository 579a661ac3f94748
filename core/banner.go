package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Banner 是广告创意记录：标识、展示字段与出价。
//
// Banner 是值类型：仓储每次读取、缓存每次反序列化都会构造新的实例，
// 任何“更新”都应构造新值，而不是原地修改。
type Banner struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Link        string          `json:"link,omitempty"` // 可选，空串表示无链接
	Price       decimal.Decimal `json:"price"`
}

// NewBanner 构造并校验 Banner。
func NewBanner(id int64, title, description, link string, price decimal.Decimal) (Banner, error) {
	b := Banner{
		ID:          id,
		Title:       title,
		Description: description,
		Link:        link,
		Price:       price,
	}
	if err := b.Validate(); err != nil {
		return Banner{}, err
	}
	return b, nil
}

// Validate 检查 ID 为正、价格非负。
func (b Banner) Validate() error {
	if b.ID <= 0 {
		return NewDomainError(ModuleRecall, ErrorCodeInvalidInput, fmt.Sprintf("banner id must be positive, got %d", b.ID))
	}
	if b.Price.IsNegative() {
		return NewDomainError(ModuleRecall, ErrorCodeInvalidInput, fmt.Sprintf("banner %d has negative price %s", b.ID, b.Price))
	}
	return nil
}

// HasLink 是否带有跳转链接
func (b Banner) HasLink() bool { return b.Link != "" }

// EmbeddingText 返回用于计算 banner 向量的文本。
func (b Banner) EmbeddingText() string {
	if b.Description == "" {
		return b.Title
	}
	return b.Title + " " + b.Description
}

// Role 区分广告主与流量方（与 auth_user.role 取值一致）。
type Role int

const (
	RoleAdvertiser Role = 1
	RolePlatform   Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleAdvertiser:
		return "advertiser"
	case RolePlatform:
		return "platform"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Platform 是发起推荐请求的流量方用户。
type Platform struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Description string `json:"description"`
	Role        Role   `json:"role"`
}

// CanRequest 只有 platform 角色可以作为推荐请求方。
func (p Platform) CanRequest() bool { return p.Role == RolePlatform }
