package database

// Product queries
const (
	UpsertProductSQL = `
		INSERT INTO products (id, name, price, unit, category, image, spec)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			unit = EXCLUDED.unit,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			spec = EXCLUDED.spec`

	ListProductsSQL = `
		SELECT id, name, price::text, unit, category, image, spec
		FROM products
		ORDER BY created_at ASC, id ASC`

	GetProductSQL = `
		SELECT id, name, price::text, unit, category, image, spec
		FROM products WHERE id = $1`

	DeleteProductSQL = `DELETE FROM products WHERE id = $1`
)

// Category queries
const (
	UpsertCategorySQL = `
		INSERT INTO categories (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	ListCategoriesSQL = `
		SELECT id, name FROM categories
		ORDER BY created_at ASC, id ASC`

	GetCategorySQL = `SELECT id, name FROM categories WHERE id = $1`

	DeleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

// Order queries
const (
	// The WHERE clause turns a lost version race into zero affected rows.
	UpsertOrderSQL = `
		INSERT INTO orders (id, client_id, status, items, total_amount, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			status = EXCLUDED.status,
			items = EXCLUDED.items,
			total_amount = EXCLUDED.total_amount,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE orders.version < EXCLUDED.version`

	ListOrdersSQL = `
		SELECT id, client_id, status, items, total_amount::text, created_at, updated_at, version
		FROM orders
		ORDER BY created_at ASC, id ASC`

	GetOrderSQL = `
		SELECT id, client_id, status, items, total_amount::text, created_at, updated_at, version
		FROM orders WHERE id = $1`

	DeleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5)`

	OrderExistsSQL = `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`

	GetOrderStatusHistorySQL = `
		SELECT order_id, status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`
)
