package shop

import "html/template"

var templates = template.Must(template.New("site").Parse(`
{{define "head"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Swag Labs</title>
    <link rel="stylesheet" href="/static/site.css">
    <script src="/static/app.js" defer></script>
</head>
<body data-render-delay="{{.RenderDelayMS}}">
{{end}}

{{define "header"}}
<div class="primary_header">
    <div id="menu_button_container">
        <button id="react-burger-menu-btn" type="button">Open Menu</button>
        <nav class="bm-menu" hidden>
            <a id="inventory_sidebar_link" href="/inventory.html">All Items</a>
            <a id="logout_sidebar_link" href="/logout">Logout</a>
            <a id="reset_sidebar_link" href="#">Reset App State</a>
            <button id="react-burger-cross-btn" type="button">Close Menu</button>
        </nav>
    </div>
    <div class="app_logo">Swag Labs</div>
    <div id="shopping_cart_container">
        <a class="shopping_cart_link" data-test="shopping-cart-link" href="/cart.html">Cart{{if .CartCount}}<span class="shopping_cart_badge">{{.CartCount}}</span>{{end}}</a>
    </div>
</div>
{{end}}

{{define "cart-button"}}<button type="button" class="btn_inventory" data-product="{{.ID}}" data-slug="{{.Slug}}"
    data-test="{{if .InCart}}remove-{{.Slug}}{{else}}add-to-cart-{{.Slug}}{{end}}">{{if .InCart}}Remove{{else}}Add to cart{{end}}</button>{{end}}

{{define "login"}}{{template "head" .}}
<div class="login_logo">Swag Labs</div>
<div id="login_button_container">
    <form id="login-form" novalidate>
        <input type="text" id="user-name" data-test="username" placeholder="Username" autocomplete="off">
        <input type="password" id="password" data-test="password" placeholder="Password" autocomplete="off">
        <div class="error-message-container">{{if .Error}}<h3 data-test="error">{{.Error}}<button type="button" class="error-button" aria-label="close"></button></h3>{{end}}</div>
        <input type="submit" id="login-button" data-test="login-button" value="Login">
    </form>
</div>
</body>
</html>
{{end}}

{{define "inventory"}}{{template "head" .}}
{{template "header" .}}
<div class="header_secondary_container">
    <span class="title">Products</span>
    <select class="product_sort_container" data-test="product_sort_container">
        <option value="az">Name (A to Z)</option>
        <option value="za">Name (Z to A)</option>
        <option value="lohi">Price (low to high)</option>
        <option value="hilo">Price (high to low)</option>
    </select>
</div>
<div id="inventory_container">
    <div class="inventory_list">
    {{range .Products}}
        <div class="inventory_item" data-name="{{.Name}}" data-price="{{.Price}}">
            <a href="/inventory-item.html?id={{.ID}}" id="item_{{.ID}}_title_link"><div class="inventory_item_name">{{.Name}}</div></a>
            <div class="inventory_item_desc">{{.Description}}</div>
            <div class="pricebar">
                <div class="inventory_item_price">{{.PriceLabel}}</div>
                {{template "cart-button" .}}
            </div>
        </div>
    {{end}}
    </div>
</div>
</body>
</html>
{{end}}

{{define "item"}}{{template "head" .}}
{{template "header" .}}
<button type="button" id="back-to-products" data-test="back-to-products" data-href="/inventory.html">Back to products</button>
{{with .Product}}
<div class="inventory_details">
    <div class="inventory_details_img" role="img" aria-label="{{.Name}}"></div>
    <div class="inventory_details_desc_container">
        <div class="inventory_details_name" data-test="inventory-item-name">{{.Name}}</div>
        <div class="inventory_details_desc" data-test="inventory-item-desc">{{.Description}}</div>
        <div class="inventory_details_price" data-test="inventory-item-price">{{.PriceLabel}}</div>
        {{template "cart-button" .}}
    </div>
</div>
{{else}}
<div class="inventory_details"><div class="inventory_details_name">ITEM NOT FOUND</div></div>
{{end}}
</body>
</html>
{{end}}

{{define "cart"}}{{template "head" .}}
{{template "header" .}}
<span class="title">Your Cart</span>
<div id="cart_contents_container">
    <div class="cart_list">
    {{range .Products}}
        <div class="cart_item">
            <div class="cart_quantity">1</div>
            <a href="/inventory-item.html?id={{.ID}}"><div class="inventory_item_name">{{.Name}}</div></a>
            <div class="inventory_item_price">{{.PriceLabel}}</div>
            {{template "cart-button" .}}
        </div>
    {{end}}
    </div>
    <button type="button" id="continue-shopping" data-test="continue-shopping" data-href="/inventory.html">Continue Shopping</button>
    <button type="button" id="checkout" data-test="checkout" data-href="/checkout-step-one.html">Checkout</button>
</div>
</body>
</html>
{{end}}

{{define "checkout-one"}}{{template "head" .}}
{{template "header" .}}
<span class="title">Checkout: Your Information</span>
<div id="checkout_info_container">
    <form method="post" action="/checkout-step-one.html" novalidate>
        <input type="text" id="first-name" name="firstName" data-test="firstName" placeholder="First Name" value="{{.Info.FirstName}}">
        <input type="text" id="last-name" name="lastName" data-test="lastName" placeholder="Last Name" value="{{.Info.LastName}}">
        <input type="text" id="postal-code" name="postalCode" data-test="postalCode" placeholder="Zip/Postal Code" value="{{.Info.PostalCode}}">
        <div class="error-message-container">{{if .Error}}<h3 data-test="error">{{.Error}}</h3>{{end}}</div>
        <button type="button" id="cancel" data-test="cancel" data-href="/cart.html">Cancel</button>
        <input type="submit" id="continue" data-test="continue" value="Continue">
    </form>
</div>
</body>
</html>
{{end}}

{{define "checkout-two"}}{{template "head" .}}
{{template "header" .}}
<span class="title">Checkout: Overview</span>
<div id="checkout_summary_container">
    <div class="cart_list">
    {{range .Products}}
        <div class="cart_item">
            <div class="cart_quantity">1</div>
            <div class="inventory_item_name">{{.Name}}</div>
            <div class="inventory_item_price">{{.PriceLabel}}</div>
        </div>
    {{end}}
    </div>
    <div class="summary_subtotal_label">Item total: {{.Subtotal}}</div>
    <div class="summary_tax_label">Tax: {{.Tax}}</div>
    <div class="summary_total_label">Total: {{.Total}}</div>
    <form method="post" action="/checkout/finish">
        <button type="button" id="cancel" data-test="cancel" data-href="/inventory.html">Cancel</button>
        <button type="submit" id="finish" data-test="finish">Finish</button>
    </form>
</div>
</body>
</html>
{{end}}

{{define "complete"}}{{template "head" .}}
{{template "header" .}}
<span class="title">Checkout: Complete!</span>
<div id="checkout_complete_container">
    <h2 class="complete-header">Thank you for your order!</h2>
    <div class="complete-text">Order {{.OrderID}} has been dispatched.</div>
    <button type="button" id="back-to-products" data-test="back-to-products" data-href="/inventory.html">Back Home</button>
</div>
</body>
</html>
{{end}}
`))

const siteCSS = `body { font-family: sans-serif; margin: 0; padding: 16px; }
button, input[type=submit] { min-width: 80px; min-height: 28px; cursor: pointer; }
input[type=text], input[type=password] { display: block; margin: 8px 0; padding: 6px; width: 240px; }
.primary_header { display: flex; gap: 16px; align-items: center; }
.app_logo, .login_logo { font-size: 24px; }
.bm-menu { display: flex; flex-direction: column; gap: 8px; padding: 8px; border: 1px solid #ccc; }
.bm-menu[hidden] { display: none; }
.shopping_cart_badge { display: inline-block; margin-left: 4px; padding: 0 6px; background: #e2231a; color: #fff; border-radius: 10px; }
.inventory_item, .cart_item { display: flex; gap: 12px; align-items: center; margin: 8px 0; }
.inventory_details_img { width: 120px; height: 120px; background: #eee; }
.error-button { width: 16px; height: 16px; margin-left: 8px; }
h3[data-test=error] { color: #e2231a; }
`

// appJS is the client: login, cart buttons, sort and menu. Every DOM
// update that follows a cart change or a sort waits data-render-delay.
const appJS = `(function () {
  const delay = Number(document.body.dataset.renderDelay || 0);
  const later = (fn) => setTimeout(fn, delay);

  async function api(method, path, body) {
    const res = await fetch(path, {
      method,
      headers: body ? { 'Content-Type': 'application/json' } : {},
      body: body ? JSON.stringify(body) : undefined,
    });
    const data = res.status === 204 ? null : await res.json();
    if (!res.ok) {
      throw new Error((data && data.error) || (method + ' ' + path + ': ' + res.status));
    }
    return data;
  }

  function setBadge(n) {
    const link = document.querySelector('.shopping_cart_link');
    if (!link) return;
    let badge = link.querySelector('.shopping_cart_badge');
    if (n === 0) {
      if (badge) badge.remove();
      return;
    }
    if (!badge) {
      badge = document.createElement('span');
      badge.className = 'shopping_cart_badge';
      link.appendChild(badge);
    }
    badge.textContent = String(n);
  }

  function setButton(btn, inCart) {
    btn.dataset.test = (inCart ? 'remove-' : 'add-to-cart-') + btn.dataset.slug;
    btn.textContent = inCart ? 'Remove' : 'Add to cart';
  }

  function showLoginError(msg) {
    const box = document.querySelector('.error-message-container');
    box.innerHTML = '';
    const h3 = document.createElement('h3');
    h3.dataset.test = 'error';
    h3.textContent = msg;
    const close = document.createElement('button');
    close.type = 'button';
    close.className = 'error-button';
    close.setAttribute('aria-label', 'close');
    h3.appendChild(close);
    box.appendChild(h3);
  }

  const form = document.getElementById('login-form');
  if (form) {
    form.addEventListener('submit', async (e) => {
      e.preventDefault();
      try {
        await api('POST', '/api/login', {
          username: document.getElementById('user-name').value,
          password: document.getElementById('password').value,
        });
        window.location.href = '/inventory.html';
      } catch (err) {
        showLoginError(err.message);
      }
    });
  }

  document.addEventListener('click', async (e) => {
    const closeErr = e.target.closest('.error-button');
    if (closeErr) {
      closeErr.closest('[data-test=error]').remove();
      return;
    }
    const nav = e.target.closest('[data-href]');
    if (nav) {
      window.location.href = nav.dataset.href;
      return;
    }
    const menu = document.querySelector('.bm-menu');
    if (e.target.closest('#react-burger-menu-btn')) {
      menu.hidden = false;
      return;
    }
    if (e.target.closest('#react-burger-cross-btn')) {
      menu.hidden = true;
      return;
    }
    if (e.target.closest('#reset_sidebar_link')) {
      e.preventDefault();
      await api('DELETE', '/api/cart');
      later(() => {
        setBadge(0);
        document.querySelectorAll('button[data-product]').forEach((b) => setButton(b, false));
      });
      return;
    }
    const btn = e.target.closest('button[data-product]');
    if (!btn) return;
    const id = Number(btn.dataset.product);
    const adding = btn.dataset.test.startsWith('add-to-cart');
    const cart = adding
      ? await api('POST', '/api/cart', { id })
      : await api('DELETE', '/api/cart/' + id);
    later(() => {
      const row = btn.closest('.cart_item');
      if (row && !adding) {
        row.remove();
      } else {
        setButton(btn, adding);
      }
      setBadge(cart.items.length);
    });
  });

  const sort = document.querySelector('.product_sort_container');
  if (sort) {
    const order = {
      az: (a, b) => a.dataset.name.localeCompare(b.dataset.name),
      za: (a, b) => b.dataset.name.localeCompare(a.dataset.name),
      lohi: (a, b) => Number(a.dataset.price) - Number(b.dataset.price),
      hilo: (a, b) => Number(b.dataset.price) - Number(a.dataset.price),
    };
    sort.addEventListener('change', () => {
      const value = sort.value;
      later(() => {
        const list = document.querySelector('.inventory_list');
        const items = Array.from(list.querySelectorAll('.inventory_item'));
        items.sort(order[value]).forEach((el) => list.appendChild(el));
      });
    });
  }
})();
`
